package csvx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead_HeaderIndexAndBOM(t *testing.T) {
	in := "\ufeffid,source,text_ar\n1,Sahih Bukhari,\"a, \"\"b\"\"\nc\"\n2,Sahih Muslim\n"
	tb, err := Read(strings.NewReader(in), true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tb.Index("id") != 0 || tb.Index("text_ar") != 2 || tb.Index("missing") != -1 {
		t.Fatalf("表头索引不正确：%v", tb.Header)
	}
	if len(tb.Rows) != 2 {
		t.Fatalf("期望 2 行，实际 %d", len(tb.Rows))
	}
	if got := Field(tb.Rows[0], 2); got != "a, \"b\"\nc" {
		t.Fatalf("引号/换行字段解析不正确：%q", got)
	}
	// 短行：越界列返回空串。
	if got := Field(tb.Rows[1], 2); got != "" {
		t.Fatalf("短行越界应返回空串，实际 %q", got)
	}
	if err := tb.Require("id", "source"); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := tb.Require("source", "chain_indx"); !errors.Is(err, ErrMissingColumn) || !strings.Contains(err.Error(), "chain_indx") {
		t.Fatalf("期望缺失列错误，实际 %v", err)
	}
}

func TestRead_NoHeader(t *testing.T) {
	tb, err := Read(strings.NewReader("1,x\n2,y\n"), false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(tb.Header) != 0 || len(tb.Rows) != 2 {
		t.Fatalf("无表头读取不正确：header=%v rows=%d", tb.Header, len(tb.Rows))
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "m.csv")
	rows := [][]string{{"1", "<div class=\"x\">"}, {"2", ""}}
	if err := WriteFile(path, []string{"id", "html"}, rows); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	want := "id,html\n1,\"<div class=\"\"x\"\">\"\n2,\n"
	if string(b) != want {
		t.Fatalf("期望 %q，实际 %q", want, string(b))
	}
}
