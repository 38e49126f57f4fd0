package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFile_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.json")

	if err := WriteFile(path, []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}
	assertNoTemp(t, filepath.Dir(path), "a.json")
}

func TestWriteFile_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("准备文件失败：%v", err)
	}
	if err := WriteFile(path, []byte("new")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "new" {
		t.Fatalf("期望被覆盖，实际 %q", string(b))
	}
}

func TestWriteFile_RenameFail_KeepsOldAndCleansTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("准备文件失败：%v", err)
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFile(path, []byte("new")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	b, _ := os.ReadFile(path)
	if string(b) != "old" {
		t.Fatalf("失败时旧文件必须保持不变，实际 %q", string(b))
	}
	assertNoTemp(t, dir, "a.txt")
}

func TestCreate_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "a.png"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	_, err := Create(filepath.Join(dir, "a.png"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestAtomicFile_AbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	f, err := Create(filepath.Join(dir, "x.csv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	_, _ = f.WriteString("a,b\n")
	f.Abort()
	f.Abort()

	if _, err := os.Stat(filepath.Join(dir, "x.csv")); !os.IsNotExist(err) {
		t.Fatalf("Abort 后不应出现目标文件：%v", err)
	}
	assertNoTemp(t, dir, "x.csv")
	if err := f.Commit(); err == nil {
		t.Fatalf("Abort 之后 Commit 应返回错误")
	}
}

func TestWriteJSON_NoHTMLEscapeAndIndent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")
	if err := WriteJSON(path, map[string]string{"t": "<b>حديث</b>"}, "  "); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, _ := os.ReadFile(path)
	want := "{\n  \"t\": \"<b>حديث</b>\"\n}\n"
	if string(b) != want {
		t.Fatalf("期望 %q，实际 %q", want, string(b))
	}
}

func TestEnsureDir_FileConflict(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("准备文件失败：%v", err)
	}
	if err := EnsureDir(p); !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%v", err)
	}
	if err := EnsureDir(filepath.Join(dir, "a", "b")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
}

func assertNoTemp(t *testing.T, dir, name string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}
