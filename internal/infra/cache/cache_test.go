package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_ReadWriteScholarHTML(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "scholars")

	s := New(dir, false)
	if err := s.WriteScholarHTML(42, []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadScholarHTML(42)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok || string(b) != "<html/>" {
		t.Fatalf("期望命中缓存，实际 ok=%v b=%q", ok, string(b))
	}

	if _, err := os.Stat(filepath.Join(dir, "42.html")); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}
}

func TestStore_MissAndEmptyFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, false)

	if _, ok, err := s.ReadScholarHTML(7); ok || err != nil {
		t.Fatalf("不存在时应 ok=false err=nil，实际 ok=%v err=%v", ok, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "7.html"), nil, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, ok, _ := s.ReadScholarHTML(7); ok {
		t.Fatalf("空文件不应视为命中")
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true)

	if err := s.WriteScholarHTML(1, []byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "1.html")); !os.IsNotExist(err) {
		t.Fatalf("只读模式不应写出文件")
	}
}

func TestStore_InvalidID(t *testing.T) {
	s := New(t.TempDir(), false)
	if _, err := s.ScholarHTMLPath(0); err == nil {
		t.Fatalf("ID=0 应报错")
	}
}
