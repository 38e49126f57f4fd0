//go:build unix

package fsx

import (
	"errors"
	"syscall"
)

// replaceRefused 识别 rename 因目标位置而被拒绝的情况：
// EXDEV（目标在另一文件系统）与 EBUSY（目标本身是挂载点，例如容器里单独挂载的 sqlite.db）。
func replaceRefused(err error) (string, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return "", false
	}
	switch errno {
	case syscall.EXDEV:
		return "EXDEV", true
	case syscall.EBUSY:
		return "EBUSY", true
	}
	return "", false
}
