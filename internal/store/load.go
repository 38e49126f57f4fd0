package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/csvx"
	"github.com/John-Robertt/isnadprep/internal/match"
	"github.com/John-Robertt/isnadprep/internal/textx"
)

// hadithRow 是 hadiths_dataset.csv 的一行；RowID 是数据集自身的 id 列（匹配结果引用它），
// Row 是数据行序号（从 1 开始，不含表头）。
type hadithRow struct {
	RowID string
	Row   int
	domain.Hadith
}

var hadithColumns = []string{"id", "hadith_id", "source", "chapter_no", "hadith_no", "chapter", "text_ar", "text_en", "chain_indx"}

// readHadiths 读取数据集；source 与 hadith_no 去首尾空白，chapter 做姓名清洗。
// 数值列无法解析的行跳过，记为 parse_failed 的 Skip。
func readHadiths(path string) (rows []hadithRow, skips []Skip, err error) {
	tb, err := csvx.ReadFile(path, true)
	if err != nil {
		return nil, nil, err
	}
	if err := tb.Require(hadithColumns...); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	idx := make(map[string]int, len(hadithColumns))
	for _, c := range hadithColumns {
		idx[c] = tb.Index(c)
	}
	get := func(rec []string, col string) string { return csvx.Field(rec, idx[col]) }

	rows = make([]hadithRow, 0, len(tb.Rows))
	for i, rec := range tb.Rows {
		hid, ok1 := parseInt(get(rec, "hadith_id"))
		chap, ok2 := parseInt(get(rec, "chapter_no"))
		if !ok1 || !ok2 {
			skips = append(skips, Skip{
				Input: path, Row: i + 1, Code: domain.ErrCodeParseFailed,
				Msg: fmt.Sprintf("hadith_id=%q chapter_no=%q 不是整数", get(rec, "hadith_id"), get(rec, "chapter_no")),
			})
			continue
		}
		rows = append(rows, hadithRow{
			RowID: strings.TrimSpace(get(rec, "id")),
			Row:   i + 1,
			Hadith: domain.Hadith{
				HadithID:  hid,
				Source:    strings.TrimSpace(get(rec, "source")),
				ChapterNo: chap,
				HadithNo:  strings.TrimSpace(get(rec, "hadith_no")),
				Chapter:   textx.CleanArabicName(get(rec, "chapter")),
				TextAr:    get(rec, "text_ar"),
				TextEn:    get(rec, "text_en"),
				ChainIndx: get(rec, "chain_indx"),
			},
		})
	}
	return rows, skips, nil
}

var rawiColumns = []string{
	"scholar_indx", "name", "full_name", "grade", "parents",
	"birth_date_hijri", "birth_date_gregorian", "death_date_hijri", "death_date_gregorian", "death_place",
}

// rawiRow 是 rawis.csv 的一行及其数据行序号。
type rawiRow struct {
	Row int
	domain.Rawi
}

func readRawis(path string) (rows []rawiRow, skips []Skip, err error) {
	tb, err := csvx.ReadFile(path, true)
	if err != nil {
		return nil, nil, err
	}
	if err := tb.Require(rawiColumns...); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	idx := make(map[string]int, len(rawiColumns))
	for _, c := range rawiColumns {
		idx[c] = tb.Index(c)
	}
	get := func(rec []string, col string) string { return csvx.Field(rec, idx[col]) }

	rows = make([]rawiRow, 0, len(tb.Rows))
	for i, rec := range tb.Rows {
		id, ok := parseInt(get(rec, "scholar_indx"))
		if !ok {
			skips = append(skips, Skip{
				Input: path, Row: i + 1, Code: domain.ErrCodeParseFailed,
				Msg: fmt.Sprintf("scholar_indx=%q 不是整数", get(rec, "scholar_indx")),
			})
			continue
		}
		rows = append(rows, rawiRow{Row: i + 1, Rawi: domain.Rawi{
			ScholarIndx:        id,
			Name:               textx.CleanArabicName(get(rec, "name")),
			FullName:           get(rec, "full_name"),
			Grade:              get(rec, "grade"),
			Parents:            get(rec, "parents"),
			BirthDateHijri:     parseDate(get(rec, "birth_date_hijri")),
			BirthDateGregorian: parseDate(get(rec, "birth_date_gregorian")),
			DeathDateHijri:     parseDate(get(rec, "death_date_hijri")),
			DeathDateGregorian: parseDate(get(rec, "death_date_gregorian")),
			DeathPlace:         get(rec, "death_place"),
		}})
	}
	return rows, skips, nil
}

func readScholarSources(path string) ([]domain.ScholarSources, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []domain.ScholarSources
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// explained 是某条圣训在解释数据集中的对应内容。
type explained struct {
	Explanation string
	HadithText  string
}

type explainKey struct {
	rowID    string
	hadithNo string
}

// loadExplained 把 matched_hadiths.csv 与 explanations.csv 按 open_hadith_id 连接，
// 得到 (数据集 id, 规范化 hadith_no) -> 解释。同一键出现多次时以第一条为准。
func loadExplained(dataDir, folder string) (map[explainKey]explained, error) {
	p := match.SourcePaths(dataDir, folder)
	ex, err := match.LoadExplanations(p.Explanations)
	if err != nil {
		return nil, err
	}
	tb, err := csvx.ReadFile(p.Matched, true)
	if err != nil {
		return nil, err
	}
	if err := tb.Require(match.MatchedHeader...); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Matched, err)
	}
	iOpen, iID, iNo := tb.Index("open_hadith_id"), tb.Index("id"), tb.Index("hadith_no")

	out := make(map[explainKey]explained, len(tb.Rows))
	for _, rec := range tb.Rows {
		k := explainKey{
			rowID:    strings.TrimSpace(csvx.Field(rec, iID)),
			hadithNo: textx.NormalizeWhitespace(csvx.Field(rec, iNo)),
		}
		if _, ok := out[k]; ok {
			continue
		}
		e := ex[csvx.Field(rec, iOpen)]
		out[k] = explained{Explanation: e.Explanation, HadithText: e.HadithText}
	}
	return out, nil
}

// parseInt 接受 "12" 与 "12.0" 两种写法。
func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// parseDate 把日期列解析为 int16：先按浮点解析、四舍六入五成双取整，再按 16 位回绕截断。
// 空值或无法解析时返回 nil（写入 NULL）。
func parseDate(s string) *int16 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	v := int16(int64(math.RoundToEven(f)))
	return &v
}

// splitChain 解析逗号分隔的学者编号串，保留首次出现的顺序并去重。
// position 按出现顺序从 1 开始递增；无法解析的编号计入 invalid。
func splitChain(s string) (ids []int64, invalid int) {
	seen := make(map[int64]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, ok := parseInt(part)
		if !ok {
			invalid++
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}
