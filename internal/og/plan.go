package og

import (
	"context"
	"database/sql"
	"path"
	"strconv"
	"strings"

	"github.com/John-Robertt/isnadprep/internal/infra/imgx"
	"github.com/John-Robertt/isnadprep/internal/store"
)

const (
	KindStatic   = "static"
	KindNarrator = "narrators"
	KindHadith   = "hadiths"
	KindChapter  = "chapters"
)

// Kinds 是 QA 页面中各分组的顺序与标题。
var Kinds = []struct {
	Dir   string
	Title string
}{
	{KindNarrator, "Narrator OG Images"},
	{KindHadith, "Hadith OG Images"},
	{KindChapter, "Chapter OG Images"},
}

// Job 是一张待生成的卡片。Rel 是相对 og-images 目录的斜杠路径。
type Job struct {
	Kind string
	Rel  string
	draw func(*Renderer) (*imgx.Card, error)
}

// Draw 渲染这张卡片。
func (j Job) Draw(r *Renderer) (*imgx.Card, error) { return j.draw(r) }

var statics = []struct {
	file, title, subtitle string
}{
	{"og-default.png", "سلسلة الرواة", "استكشف الأحاديث وسلاسل الرواة"},
	{"og-narrators.png", "الرواة", "تراجم رواة الحديث وسلاسل الإسناد"},
	{"og-search.png", "البحث في الأحاديث", "ابحث في نصوص الأحاديث وأسماء الرواة"},
}

func NarratorPath(name string) string {
	return path.Join(KindNarrator, strings.NewReplacer("/", "-", `\`, "-").Replace(name)+".png")
}

func HadithPath(source string, chapterNo int64, hadithNo string) string {
	no := strings.TrimSpace(strings.ReplaceAll(hadithNo, "/", "-"))
	return path.Join(KindHadith, sourceDir(source), strconv.FormatInt(chapterNo, 10), no+".png")
}

func ChapterPath(source string, chapterNo int64) string {
	return path.Join(KindChapter, sourceDir(source), strconv.FormatInt(chapterNo, 10)+".png")
}

func sourceDir(source string) string { return strings.ReplaceAll(source, " ", "_") }

// PlanStats 记录规划阶段丢弃的条目。
type PlanStats struct {
	Narrators, Hadiths, Chapters int
	// Collisions 是输出路径与先前任务重复而被丢弃的条目数（例如同名学者）。
	Collisions int
	// Blank 是名字或编号为空、无法形成文件名的条目数。
	Blank int
}

// Plan 从数据库读出所有需要生成的卡片：静态页、全部学者、sources 中的圣训与章节。
// 输出路径重复时保留第一个。
func Plan(ctx context.Context, db *sql.DB, sources []string) ([]Job, PlanStats, error) {
	var (
		st   PlanStats
		jobs []Job
		seen = make(map[string]struct{})
	)
	add := func(j Job) bool {
		if _, dup := seen[j.Rel]; dup {
			st.Collisions++
			return false
		}
		seen[j.Rel] = struct{}{}
		jobs = append(jobs, j)
		return true
	}

	for _, s := range statics {
		add(Job{Kind: KindStatic, Rel: s.file, draw: func(r *Renderer) (*imgx.Card, error) {
			return r.Static(s.title, s.subtitle)
		}})
	}

	narrators, err := store.Narrators(ctx, db)
	if err != nil {
		return nil, st, err
	}
	for _, n := range narrators {
		if strings.TrimSpace(n.Name) == "" {
			st.Blank++
			continue
		}
		if add(Job{Kind: KindNarrator, Rel: NarratorPath(n.Name), draw: func(r *Renderer) (*imgx.Card, error) {
			return r.Narrator(n)
		}}) {
			st.Narrators++
		}
	}

	hadiths, err := store.HadithCards(ctx, db, sources)
	if err != nil {
		return nil, st, err
	}
	for _, h := range hadiths {
		if strings.TrimSpace(h.HadithNo) == "" {
			st.Blank++
			continue
		}
		if add(Job{Kind: KindHadith, Rel: HadithPath(h.Source, h.ChapterNo, h.HadithNo), draw: func(r *Renderer) (*imgx.Card, error) {
			return r.Hadith(h)
		}}) {
			st.Hadiths++
		}
	}

	chapters, err := store.ChapterCards(ctx, db, sources)
	if err != nil {
		return nil, st, err
	}
	for _, c := range chapters {
		if add(Job{Kind: KindChapter, Rel: ChapterPath(c.Source, c.ChapterNo), draw: func(r *Renderer) (*imgx.Card, error) {
			return r.Chapter(c)
		}}) {
			st.Chapters++
		}
	}
	return jobs, st, nil
}
