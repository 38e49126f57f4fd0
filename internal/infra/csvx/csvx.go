// Package csvx 是 encoding/csv 之上的薄封装：按表头取列、原子写出。
package csvx

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

// ErrMissingColumn 表示带表头的 CSV 缺少必需列。
var ErrMissingColumn = errors.New("缺少列")

// IsParseError 判断 err 是否属于内容问题（CSV 语法错误或缺列），而不是 I/O 问题。
func IsParseError(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe) || errors.Is(err, ErrMissingColumn)
}

// Table 是一个完整读入内存的 CSV。Header 为空表示无表头文件。
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// Index 返回列名所在的下标；不存在时返回 -1。
func (t *Table) Index(name string) int {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Header))
		for i, h := range t.Header {
			if _, ok := t.index[h]; !ok {
				t.index[h] = i
			}
		}
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Require 检查列是否齐全，返回缺失列组成的错误。
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if t.Index(n) < 0 {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w：%s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Field 安全取值：下标越界（短行）时返回空串。
func Field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ReadFile 读取整个 CSV 文件。header=true 时第一行作为表头（会去掉 UTF-8 BOM）。
func ReadFile(path string, header bool) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f, header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read 从 r 读取 CSV。允许每行列数不同、允许不规范引号。
func Read(r io.Reader, header bool) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	t := &Table{}
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			}
			if header {
				t.Header = rec
				continue
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// WriteFile 原子写出 CSV（含表头）。
func WriteFile(path string, header []string, rows [][]string) error {
	f, err := fsx.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			f.Abort()
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}
