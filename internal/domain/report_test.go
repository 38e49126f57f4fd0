package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Command:    "og",
		Root:       "/abs/root",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Key: "narrators/b", Status: StatusSkipped},
			{Key: "", Status: StatusFailed}, // 阶段级合成项
			{Key: "narrators/a", Status: StatusProcessed},
			{Key: "", Status: StatusUnmatched},
		},
	}

	r.Finalize()

	if r.Items[0].Key != "narrators/a" || r.Items[1].Key != "narrators/b" || r.Items[2].Key != "" || r.Items[3].Key != "" {
		t.Fatalf("items 排序不符合契约：%v", []string{r.Items[0].Key, r.Items[1].Key, r.Items[2].Key, r.Items[3].Key})
	}
	// key=="" 内部保持原顺序。
	if r.Items[2].Status != StatusFailed || r.Items[3].Status != StatusUnmatched {
		t.Fatalf("空 key 条目顺序不稳定：%+v", r.Items[2:])
	}
	if r.Summary.Processed != 1 || r.Summary.Skipped != 1 || r.Summary.Failed != 1 || r.Summary.Unmatched != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_FinalizeEmptyItemsIsArray(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) {
		t.Fatalf("items 应输出为空数组：%s", string(b))
	}
}

func TestRunReport_Merge(t *testing.T) {
	a := RunReport{Items: []ItemResult{Processed("sources", "1", "")}}
	b := RunReport{Items: []ItemResult{Failed("match", "bukhari", ErrCodeIOFailed, "x")}}
	a.Merge(b)
	a.Finalize()
	if a.Summary.Processed != 1 || a.Summary.Failed != 1 {
		t.Fatalf("合并后 summary 不正确：%+v", a.Summary)
	}
}
