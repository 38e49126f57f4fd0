package store

import (
	"context"
	"database/sql"
	"strings"
)

// SearchRow 是搜索索引中的一条；narrator_name 来自传述链第 1 位学者，可能为空。
type SearchRow struct {
	ID           int64   `json:"id"`
	Source       string  `json:"source"`
	Chapter      string  `json:"chapter"`
	ChapterNo    int64   `json:"chapter_no"`
	HadithNo     string  `json:"hadith_no"`
	TextAr       string  `json:"text_ar"`
	NarratorName *string `json:"narrator_name"`
}

// HadithRow 是 hadiths.json 中的一条。
type HadithRow struct {
	Source       string  `json:"source"`
	Chapter      string  `json:"chapter"`
	ChapterNo    int64   `json:"chapter_no"`
	HadithNo     string  `json:"hadith_no"`
	TextAr       string  `json:"text_ar"`
	NarratorName *string `json:"narrator_name"`
}

const firstNarratorJoin = `
LEFT JOIN hadith_chains c ON h.source = c.source AND h.chapter_no = c.chapter_no AND h.hadith_no = c.hadith_no AND c.position = 1
LEFT JOIN rawis r ON c.scholar_indx = r.scholar_indx`

// SearchRows 返回全部圣训（按 id 排序）。
func SearchRows(ctx context.Context, db *sql.DB) ([]SearchRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT h.id, h.source, h.chapter, h.chapter_no, h.hadith_no, h.text_ar, r.name
FROM hadiths h`+firstNarratorJoin+`
ORDER BY h.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var (
			r       SearchRow
			chapter sql.NullString
			text    sql.NullString
			name    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Source, &chapter, &r.ChapterNo, &r.HadithNo, &text, &name); err != nil {
			return nil, err
		}
		r.Chapter, r.TextAr, r.NarratorName = chapter.String, text.String, nullStringPtr(name)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExplainedHadiths 返回某来源中 explanation 非空的圣训（按 id 排序）。
func ExplainedHadiths(ctx context.Context, db *sql.DB, source string) ([]HadithRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT h.source, h.chapter, h.chapter_no, h.hadith_no, h.text_ar, r.name
FROM hadiths h`+firstNarratorJoin+`
WHERE h.source = ? AND h.explanation IS NOT NULL AND h.explanation != ''
ORDER BY h.id`, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HadithRow
	for rows.Next() {
		var (
			r       HadithRow
			chapter sql.NullString
			text    sql.NullString
			name    sql.NullString
		)
		if err := rows.Scan(&r.Source, &chapter, &r.ChapterNo, &r.HadithNo, &text, &name); err != nil {
			return nil, err
		}
		r.Chapter, r.TextAr, r.NarratorName = chapter.String, text.String, nullStringPtr(name)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Narrator 是生成学者卡片所需的字段。
type Narrator struct {
	ScholarIndx    int64
	Name           string
	FullName       string
	Grade          string
	DeathDateHijri *int64
}

func Narrators(ctx context.Context, db *sql.DB) ([]Narrator, error) {
	rows, err := db.QueryContext(ctx, `SELECT scholar_indx, name, full_name, grade, death_date_hijri FROM rawis ORDER BY scholar_indx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Narrator
	for rows.Next() {
		var (
			n                 Narrator
			name, full, grade sql.NullString
			death             sql.NullInt64
		)
		if err := rows.Scan(&n.ScholarIndx, &name, &full, &grade, &death); err != nil {
			return nil, err
		}
		n.Name, n.FullName, n.Grade = name.String, full.String, grade.String
		if death.Valid {
			v := death.Int64
			n.DeathDateHijri = &v
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// HadithCard 是生成圣训卡片所需的字段。
type HadithCard struct {
	Source    string
	ChapterNo int64
	HadithNo  string
	TextAr    string
}

func HadithCards(ctx context.Context, db *sql.DB, sources []string) ([]HadithCard, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `SELECT source, chapter_no, hadith_no, text_ar FROM hadiths
WHERE source IN (`+placeholders(len(sources))+`) ORDER BY id`, anySlice(sources)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HadithCard
	for rows.Next() {
		var (
			c    HadithCard
			text sql.NullString
		)
		if err := rows.Scan(&c.Source, &c.ChapterNo, &c.HadithNo, &text); err != nil {
			return nil, err
		}
		c.TextAr = text.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChapterCard 是一个章节的汇总：同一 (source, chapter_no) 下取字典序最小的章节名。
type ChapterCard struct {
	Source      string
	ChapterNo   int64
	Chapter     string
	HadithCount int
}

func ChapterCards(ctx context.Context, db *sql.DB, sources []string) ([]ChapterCard, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `SELECT source, chapter_no, MIN(chapter), COUNT(*) FROM hadiths
WHERE source IN (`+placeholders(len(sources))+`)
GROUP BY source, chapter_no ORDER BY source, chapter_no`, anySlice(sources)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChapterCard
	for rows.Next() {
		var (
			c    ChapterCard
			name sql.NullString
		)
		if err := rows.Scan(&c.Source, &c.ChapterNo, &name, &c.HadithCount); err != nil {
			return nil, err
		}
		c.Chapter = name.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
