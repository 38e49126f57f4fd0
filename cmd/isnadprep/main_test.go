package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
)

func TestParseArgs(t *testing.T) {
	ca, err := parseArgs([]string{"proj", "--threshold", "85.5", "--workers=3", "--from", "10", "--to=20", "--config", "x.yaml"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := config.CLIArgs{
		Root: "proj", ConfigPath: "x.yaml",
		Threshold: 85.5, ThresholdSet: true,
		Workers: 3, WorkersSet: true,
		IDFrom: 10, IDFromSet: true,
		IDTo: 20, IDToSet: true,
	}
	if ca != want {
		t.Fatalf("期望 %+v，实际 %+v", want, ca)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	cases := [][]string{
		{"--bogus"},
		{"--threshold"},
		{"--threshold", "101"},
		{"--threshold", "0"},
		{"--threshold", "100"},
		{"--threshold", "NaN"},
		{"--workers", "0"},
		{"--from", "x"},
		{"--from", "5", "--to", "2"},
		{"a", "b"},
		{"--config="},
	}
	for _, c := range cases {
		if _, err := parseArgs(c); err == nil {
			t.Fatalf("%q 期望错误", c)
		}
	}
}

func sampleReport() domain.RunReport {
	rr := domain.RunReport{
		Command:    "all",
		Root:       "/r",
		StartedAt:  time.Unix(0, 0),
		FinishedAt: time.Unix(1, 0),
		Items: []domain.ItemResult{
			domain.Processed("export", "public/search_index.json", "public/search_index.json"),
			domain.Failed("og", "public/og/x.png", domain.ErrCodeRenderFailed, "坏"),
			{Key: "bukhari/7", Stage: "match", Status: domain.StatusUnmatched, ErrorCode: domain.ErrCodeUnmatchedRef},
		},
	}
	rr.Finalize()
	return rr
}

func TestWriteReport_NonTTYStdoutIsJSONOnly(t *testing.T) {
	var stdout, stderr bytes.Buffer
	writeReport(&stdout, &stderr, sampleReport(), false)

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\n%q", err, stdout.String())
	}
	if rr.Summary.Processed != 1 || rr.Summary.Failed != 1 || rr.Summary.Unmatched != 1 {
		t.Fatalf("summary 不正确：%+v", rr.Summary)
	}
	if !strings.Contains(stderr.String(), "完成：processed=1 skipped=0 failed=1 unmatched=1") {
		t.Fatalf("stderr 应有摘要：%q", stderr.String())
	}
}

func TestWriteReport_TTYListsFailures(t *testing.T) {
	var stdout, stderr bytes.Buffer
	writeReport(&stdout, &stderr, sampleReport(), true)
	if strings.Contains(stdout.String(), "{") {
		t.Fatalf("TTY 模式 stdout 不应输出 JSON：%q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "public/og/x.png render_failed: 坏") {
		t.Fatalf("失败条目应写到 stderr：%q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "未匹配的参考 1 条") {
		t.Fatalf("应提示未匹配数量：%q", stderr.String())
	}
}

func TestExitCode_UnmatchedDoesNotFail(t *testing.T) {
	rr := domain.RunReport{Items: []domain.ItemResult{{Key: "a", Status: domain.StatusUnmatched}}}
	rr.Finalize()
	if exitCode(rr) != 0 {
		t.Fatalf("只有未匹配时退出码应为 0")
	}
	if exitCode(sampleReport()) != 1 {
		t.Fatalf("有失败条目时退出码应为 1")
	}
}

func TestReportForConfigError(t *testing.T) {
	err := &config.Error{Code: domain.ErrCodeConfigInvalid, Path: "/r/isnadprep.yaml", Err: errors.New("坏 YAML")}
	rr := reportForConfigError("builddb", "/cwd", config.CLIArgs{Root: "proj"}, err)
	if rr.Root != "/cwd/proj" || rr.Command != "builddb" {
		t.Fatalf("报告头不正确：%+v", rr)
	}
	if len(rr.Items) != 1 || rr.Items[0].ErrorCode != domain.ErrCodeConfigInvalid || rr.Summary.Failed != 1 {
		t.Fatalf("配置错误条目不正确：%+v", rr)
	}
}
