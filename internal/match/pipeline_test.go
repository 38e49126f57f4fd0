package match

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}

func seedData(t *testing.T, dataDir string) {
	t.Helper()
	writeFile(t, filepath.Join(dataDir, "hadiths_dataset.csv"),
		"id,hadith_id,source,chapter_no,hadith_no,chapter,chain_indx,text_ar,text_en\n"+
			"10,1, Sahih Bukhari ,1,1,باب,\"1,2\",الحديث الأول,first\n"+
			"11,2,Sahih Bukhari,1,2,باب,3,نص لا يشبه شيئا ابدا,second\n"+
			"12,3,Sahih Muslim,1,1,باب,4,الحديث الأول,muslim\n")
	writeFile(t, filepath.Join(dataDir, "bukhari", "hadiths.csv"),
		"o1,الحديث الاول\no2,نص بلا شرح\n")
	writeFile(t, filepath.Join(dataDir, "bukhari", "explanations.csv"),
		"o1,الحديثُ الأوّل,شرح الحديث\no2,نص,\n")
}

func TestProcessSource_WritesMatchedAndUnmatched(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	seedData(t, dataDir)

	res, err := ProcessSource(context.Background(), dataDir, config.SourceConfig{Folder: "bukhari", Name: "Sahih Bukhari"}, Options{Threshold: 80})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(res.Matches) != 1 || res.Skipped != 1 {
		t.Fatalf("匹配统计不正确：%+v", res)
	}

	b, err := os.ReadFile(filepath.Join(dataDir, "bukhari", "matched_hadiths.csv"))
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	if want := "open_hadith_id,id,hadith_no\no1,10,1\n"; string(b) != want {
		t.Fatalf("matched 输出不正确：期望 %q，实际 %q", want, string(b))
	}

	b, err = os.ReadFile(filepath.Join(dataDir, "bukhari", "unmatched_hadiths.csv"))
	if err != nil {
		t.Fatalf("读取失败：%v", err)
	}
	if want := "id,hadith_no\n11,2\n"; string(b) != want {
		t.Fatalf("unmatched 输出不正确：期望 %q，实际 %q", want, string(b))
	}
}

func TestLoadReferences_MissingSourceColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hadiths_dataset.csv")
	writeFile(t, path, "id,hadith_no,text_ar\n1,1,x\n")
	if _, err := LoadReferences(path, "Sahih Bukhari"); err == nil || errCode(err) != domain.ErrCodeParseFailed {
		t.Fatalf("缺少 source 列应为 parse_failed，实际 %v", err)
	}
}

func TestExecute_ReportsPerSourceAndUnmatched(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	seedData(t, dataDir)

	eff := config.EffectiveConfig{
		Root:    root,
		DataDir: dataDir,
		Sources: []config.SourceConfig{
			{Folder: "bukhari", Name: "Sahih Bukhari"},
			{Folder: "muslim", Name: "Sahih Muslim"},
		},
		Match: config.MatchConfig{Threshold: 80, Workers: 2},
	}

	var calls int
	items := Execute(context.Background(), eff, zerolog.Nop(), func(done, total int, res domain.ItemResult, _ time.Duration) {
		calls++
		if total != 2 || done != calls {
			t.Errorf("hook 参数不正确：done=%d total=%d", done, total)
		}
	})
	if calls != 2 {
		t.Fatalf("期望 hook 调用 2 次，实际 %d", calls)
	}

	byKey := map[string]domain.ItemResult{}
	for _, it := range items {
		byKey[it.Key] = it
	}
	if it := byKey["bukhari"]; it.Status != domain.StatusProcessed || it.Output != "data/bukhari/matched_hadiths.csv" {
		t.Fatalf("bukhari 条目不正确：%+v", it)
	}
	if it := byKey["bukhari/11"]; it.Status != domain.StatusUnmatched || it.ErrorCode != domain.ErrCodeUnmatchedRef {
		t.Fatalf("未匹配条目不正确：%+v", it)
	}
	// muslim 目录不存在：该来源失败，但不影响 bukhari。
	if it := byKey["muslim"]; it.Status != domain.StatusFailed || it.ErrorCode != domain.ErrCodeIOFailed {
		t.Fatalf("muslim 条目应失败：%+v", it)
	}
}
