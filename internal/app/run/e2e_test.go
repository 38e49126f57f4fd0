package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/csvx"
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

func seedProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")

	writeFile(t, filepath.Join(root, config.FileName), `
sources:
  - folder: bukhari
    name: Sahih Bukhari
og:
  workers: 2
  font_regular: fonts/none.ttf
  font_bold: fonts/none.ttf
`)
	if err := csvx.WriteFile(filepath.Join(data, "scholars_data.csv"), domain.ScholarCSVHeader, [][]string{
		{"1", "أبو هريرة", "", "", "", "", `<div id="hideshow1">التاريخ الكبير<br>صحابي<hr>الإصابة<br>ثقة<hr></div>`, ""},
		{"2", "مالك", "", "", "", "", "", ""},
	}); err != nil {
		t.Fatalf("写入学者 CSV 失败：%v", err)
	}
	writeFile(t, filepath.Join(data, "hadiths_dataset.csv"),
		"id,hadith_id,source,chapter_no,hadith_no,chapter,chain_indx,text_ar,text_en\n"+
			"10,1,Sahih Bukhari,1,1,باب بدء الوحي,\"1, 2\",إنما الأعمال بالنيات,actions\n"+
			"11,2,Sahih Bukhari,1,2,باب بدء الوحي,2,كلام لا يشبه اي شيء هنا ابدا,other\n")
	writeFile(t, filepath.Join(data, "rawis.csv"),
		"scholar_indx,name,full_name,grade,parents,birth_date_hijri,birth_date_gregorian,death_date_hijri,death_date_gregorian,death_place\n"+
			"1,أبو هريرة رضي الله عنه,عبد الرحمن بن صخر,Comp.(RA) [1st generation],,,,59,,\n"+
			"2,مالك,مالك بن أنس,,,,,179,,\n")
	writeFile(t, filepath.Join(data, "bukhari", "hadiths.csv"), "o1,إنما الاعمال بالنيات\n")
	writeFile(t, filepath.Join(data, "bukhari", "explanations.csv"), "o1,إِنَّمَا الأَعْمَالُ بِالنِّيَّاتِ,شرح الحديث\n")
	return root
}

func TestExecute_AllEndToEnd(t *testing.T) {
	root := seedProject(t)
	eff, err := config.LoadEffective(root, config.CLIArgs{})
	if err != nil {
		t.Fatalf("加载配置失败：%v", err)
	}

	rr := Execute(context.Background(), CommandAll, eff, zerolog.Nop())
	if rr.Summary.Failed != 0 {
		t.Fatalf("不期望失败：%+v", rr.Items)
	}
	if rr.Summary.Unmatched != 1 {
		t.Fatalf("期望 1 条未匹配参考，实际 %+v", rr.Summary)
	}

	var hadiths []map[string]any
	b, err := os.ReadFile(filepath.Join(root, "public", "hadiths.json"))
	if err != nil {
		t.Fatalf("读取 hadiths.json 失败：%v", err)
	}
	if err := json.Unmarshal(b, &hadiths); err != nil {
		t.Fatalf("hadiths.json 不是合法 JSON：%v", err)
	}
	if len(hadiths) != 1 || hadiths[0]["text_ar"] != "إنما الأعمال بالنيات" || hadiths[0]["narrator_name"] != "أبو هريرة" {
		t.Fatalf("hadiths.json 内容不正确：%+v", hadiths)
	}

	for _, rel := range []string{
		"data/scholars_sources.json",
		"data/bukhari/matched_hadiths.csv",
		"data/bukhari/unmatched_hadiths.csv",
		"data/sqlite.db",
		"public/search_index.json",
		"public/images/og-images/og-default.png",
		"public/images/og-images/narrators/مالك.png",
		"public/images/og-images/hadiths/Sahih_Bukhari/1/2.png",
		"public/images/og-images/chapters/Sahih_Bukhari/1.png",
		"public/images/og-images/index.html",
	} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("缺少产物 %s：%v", rel, err)
		}
	}

	// 重跑一次：结果一致（幂等）。
	again := Execute(context.Background(), CommandAll, eff, zerolog.Nop())
	if again.Summary != rr.Summary {
		t.Fatalf("重跑结果不一致：%+v vs %+v", again.Summary, rr.Summary)
	}
}

func TestExecute_AllContinuesPastBadScholarRow(t *testing.T) {
	root := seedProject(t)
	data := filepath.Join(root, "data")
	if err := csvx.WriteFile(filepath.Join(data, "scholars_data.csv"), domain.ScholarCSVHeader, [][]string{
		{"1", "أبو هريرة", "", "", "", "", `<div id="hideshow1">التاريخ الكبير<br>صحابي<hr></div>`, ""},
		{"x3", "مجهول", "", "", "", "", `<div id="hideshow1">كتاب<br>نص<hr></div>`, ""},
	}); err != nil {
		t.Fatalf("写入学者 CSV 失败：%v", err)
	}
	eff, err := config.LoadEffective(root, config.CLIArgs{})
	if err != nil {
		t.Fatalf("加载配置失败：%v", err)
	}

	rr := Execute(context.Background(), CommandAll, eff, zerolog.Nop())
	if rr.Summary.Failed != 1 {
		t.Fatalf("期望 1 条失败，实际 %+v", rr.Items)
	}
	for _, it := range rr.Items {
		if it.Status == domain.StatusFailed && (it.Key != "scholar/x3" || it.Fatal) {
			t.Fatalf("唯一的失败应是学者 x3 且非致命：%+v", it)
		}
	}
	for _, rel := range []string{
		"data/scholars_sources.json",
		"data/sqlite.db",
		"public/hadiths.json",
		"public/images/og-images/index.html",
	} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			t.Fatalf("单行失败后仍应生成 %s：%v", rel, err)
		}
	}
}
