package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

// Store 提供学者页面 HTML 的磁盘缓存：<dir>/<id>.html。
//
// 全量抓取 4 万页、每页间隔 1 秒，要跑十几个小时；
// 中断后重跑时命中缓存的页面不再请求网络，也不占用限速配额。
type Store struct {
	Dir      string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(dir string, readOnly bool) Store {
	return Store{
		Dir:      filepath.Clean(strings.TrimSpace(dir)),
		ReadOnly: readOnly,
	}
}

// ScholarHTMLPath 返回某个学者页面缓存的绝对路径。
func (s Store) ScholarHTMLPath(id int) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("学者 ID 必须为正数，实际 %d", id)
	}
	if s.Dir == "" || s.Dir == "." {
		return "", errors.New("cache 目录未配置")
	}
	return filepath.Join(s.Dir, strconv.Itoa(id)+".html"), nil
}

// ReadScholarHTML 读取缓存；不存在时 ok=false 且 err=nil。
func (s Store) ReadScholarHTML(id int) ([]byte, bool, error) {
	path, err := s.ScholarHTMLPath(id)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if len(b) == 0 {
		// 空文件视为坏缓存。
		return nil, false, nil
	}
	return b, true, nil
}

func (s Store) WriteScholarHTML(id int, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.ScholarHTMLPath(id)
	if err != nil {
		return err
	}
	return fsx.WriteFile(path, html)
}
