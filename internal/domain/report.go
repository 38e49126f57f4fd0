package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusUnmatched = "unmatched"
)

const (
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeRenderFailed   = "render_failed"
	ErrCodeDBFailed       = "db_failed"
	ErrCodeUploadFailed   = "upload_failed"
	ErrCodeUnmatchedRef   = "unmatched_reference"
	ErrCodeDuplicateKey   = "duplicate_key"
	ErrCodeDanglingRef    = "dangling_reference"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON）的结构；每个子命令产出一份。
type RunReport struct {
	Command string `json:"command"`
	Root    string `json:"root"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Unmatched int `json:"unmatched"`
}

// ItemResult 描述一个处理单元（一个学者页面、一张卡片、一个来源的匹配……）的结果。
// Key 在同一份报告内唯一；合成条目（配置错误、阶段级致命错误）Key 为空。
type ItemResult struct {
	Key   string `json:"key"`
	Stage string `json:"stage"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Output 是该条目落盘的产物路径（相对 root）；没有产物时为空。
	Output string `json:"output"`

	// Fatal 表示阶段产物没有生成（而不是单个处理单元失败）；串联执行时后续阶段不再运行。
	Fatal bool `json:"fatal,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 key 字典序；key=="" 的条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Key
		b := r.Items[j].Key
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusUnmatched:
			s.Unmatched++
		}
	}
	r.Summary = s
}

// Merge 把另一份报告的条目追加进来（用于 all 命令串联多个阶段）。
func (r *RunReport) Merge(other RunReport) {
	r.Items = append(r.Items, other.Items...)
}

// ItemHook 在单个条目完成时回调（done 从 1 开始）。可能被多个 goroutine 调用，实现必须并发安全。
type ItemHook func(done, total int, res ItemResult, dur time.Duration)

// Call 在 h 为 nil 时什么也不做。
func (h ItemHook) Call(done, total int, res ItemResult, dur time.Duration) {
	if h != nil {
		h(done, total, res, dur)
	}
}

// Failed 生成一个失败条目。
func Failed(stage, key, code, msg string) ItemResult {
	return ItemResult{Key: key, Stage: stage, Status: StatusFailed, ErrorCode: code, ErrorMsg: msg}
}

// Fatal 生成一个阶段级失败条目：该阶段的产物没有生成。
func Fatal(stage, key, code, msg string) ItemResult {
	it := Failed(stage, key, code, msg)
	it.Fatal = true
	return it
}

// Processed 生成一个成功条目。
func Processed(stage, key, output string) ItemResult {
	return ItemResult{Key: key, Stage: stage, Status: StatusProcessed, Output: output}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
