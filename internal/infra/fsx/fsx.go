package fsx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 测试替换它来模拟 EXDEV/EBUSY。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望目录但实际是文件）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// ReplaceRefusedError 表示产物无法替换到目标位置（EXDEV 或 EBUSY）。
// 临时文件总是与目标同目录创建，出现它说明目标是挂载点或跨文件系统的链接，
// 需要改挂载方式（挂目录而不是单个文件），重试没有意义。
type ReplaceRefusedError struct {
	Src    string
	Dst    string
	Reason string // "EXDEV" 或 "EBUSY"
	Err    error
}

func (e *ReplaceRefusedError) Error() string {
	return fmt.Sprintf("无法替换 %q（%s）：目标是挂载点或位于另一文件系统，请挂载其所在目录：%v", e.Dst, e.Reason, e.Err)
}

func (e *ReplaceRefusedError) Unwrap() error { return e.Err }

// IsReplaceRefused 判断 err 是否为 ReplaceRefusedError。
func IsReplaceRefused(err error) bool {
	var e *ReplaceRefusedError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把目标无法替换的情况标记为 ReplaceRefusedError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if reason, ok := replaceRefused(err); ok {
			return &ReplaceRefusedError{Src: src, Dst: dst, Reason: reason, Err: err}
		}
		return err
	}
	return nil
}

// Rel 返回 p 相对 root 的斜杠路径；无法求相对路径时原样返回 p。
func Rel(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil {
		return filepath.ToSlash(rel)
	}
	return p
}

// EnsureDir 确保 dir 是目录（不存在则创建）；若同名路径是文件则返回 PathTypeConflictError。
func EnsureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// WriteFile 原子写入 path（同目录临时文件 + rename），目标存在则覆盖。
// 所有产物（CSV/JSON/PNG/HTML）都走这里：中途失败时旧文件保持不变。
func WriteFile(path string, data []byte) error {
	f, err := Create(path)
	if err != nil {
		return err
	}
	if err := writeAll(f, data); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

// WriteJSON 把 v 编码为 JSON 并原子写入。indent 为空表示紧凑输出。
// 不转义 HTML 字符（<、>、&），阿拉伯文等非 ASCII 字符原样输出。
func WriteJSON(path string, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	return WriteFile(path, buf.Bytes())
}

// AtomicFile 是一个“写完再生效”的文件：Commit 之前目标路径不可见。
type AtomicFile struct {
	*os.File
	dst  string
	done bool
}

// Create 在 path 同目录创建临时文件。调用方必须以 Commit 或 Abort 结束。
func Create(path string) (*AtomicFile, error) {
	path = filepath.Clean(path)
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	if fi, err := os.Lstat(path); err == nil && fi.IsDir() {
		return nil, &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}

	// 临时文件前缀带 '.'，避免被静态站点当成产物发布。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{File: tmp, dst: path}, nil
}

// TempPath 返回临时文件路径（例如交给 SQLite 直接打开）。
func (f *AtomicFile) TempPath() string { return f.File.Name() }

// Commit 落盘并原子替换目标文件。
func (f *AtomicFile) Commit() error {
	if f.done {
		return errors.New("atomic file 已结束")
	}
	f.done = true
	tmpName := f.File.Name()

	if err := f.File.Chmod(0o644); err != nil {
		_ = f.File.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := Rename(tmpName, f.dst); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(filepath.Dir(f.dst))
	return nil
}

// Abort 丢弃临时文件；目标文件保持不变。重复调用无副作用。
func (f *AtomicFile) Abort() {
	if f.done {
		return
	}
	f.done = true
	_ = f.File.Close()
	_ = os.Remove(f.File.Name())
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
