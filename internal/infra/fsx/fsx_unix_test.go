//go:build unix

package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestWriteFile_ReplaceRefusedSurfaced(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EXDEV, syscall.EBUSY} {
		old := renameFunc
		renameFunc = func(oldpath, newpath string) error {
			return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errno}
		}

		dir := t.TempDir()
		err := WriteFile(filepath.Join(dir, "sqlite.db"), []byte("x"))
		renameFunc = old

		var re *ReplaceRefusedError
		if !errors.As(err, &re) || !IsReplaceRefused(err) {
			t.Fatalf("%v：期望 ReplaceRefusedError，实际：%T %v", errno, err, err)
		}
		if !errors.Is(err, errno) {
			t.Fatalf("%v：应能取到原始 errno：%v", errno, err)
		}
		assertNoTemp(t, dir, "sqlite.db")
	}
}

func TestRename_OtherErrnoPassesThrough(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EACCES}
	}
	defer func() { renameFunc = old }()

	err := Rename("/a", "/b")
	if err == nil || IsReplaceRefused(err) {
		t.Fatalf("EACCES 不应标记为 ReplaceRefusedError：%v", err)
	}
}
