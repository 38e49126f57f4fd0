// Package store 负责 SQLite 数据库：从 CSV/JSON 全量重建，以及供导出与配图读取。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

const Stage = "builddb"

// Inputs 是一次重建所需的全部输入。
type Inputs struct {
	HadithsCSV  string
	RawisCSV    string
	SourcesJSON string

	// DataDir + Sources 用于定位各来源的 matched_hadiths.csv / explanations.csv。
	DataDir string
	Sources []config.SourceConfig
}

// InputsFor 按约定目录布局组装 Inputs。
func InputsFor(eff config.EffectiveConfig) Inputs {
	return Inputs{
		HadithsCSV:  filepath.Join(eff.DataDir, "hadiths_dataset.csv"),
		RawisCSV:    filepath.Join(eff.DataDir, "rawis.csv"),
		SourcesJSON: eff.Extract.Output,
		DataDir:     eff.DataDir,
		Sources:     eff.Sources,
	}
}

// Stats 汇总一次重建中写入与丢弃的行数。
type Stats struct {
	Hadiths    int
	Explained  map[string]int
	Duplicates int
	Invalid    int

	Rawis          int
	DuplicateRawis int

	Chains        int
	DanglingLinks int

	Sources         int
	DanglingSources int

	// Skips 逐条记录被丢弃的输入，顺序为读取顺序。
	Skips []Skip
}

// Skip 是重建时被丢弃的一条输入：Input 为所在文件，Row 为数据行序号（从 1 开始）。
type Skip struct {
	Input string
	Row   int
	Code  string
	Msg   string
}

func (st *Stats) skip(input string, row int, code, msg string) {
	st.Skips = append(st.Skips, Skip{Input: input, Row: row, Code: code, Msg: msg})
}

// Open 以只读方式打开已构建的数据库。
func Open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Build 全量重建 dbPath：在同目录临时文件中建表并在单个事务内导入，提交后原子替换。
// 任意错误都会回滚并删除临时文件，已有数据库保持不变。
func Build(ctx context.Context, in Inputs, dbPath string) (Stats, error) {
	st := Stats{Explained: map[string]int{}}

	hadiths, skips, err := readHadiths(in.HadithsCSV)
	if err != nil {
		return st, err
	}
	st.Invalid += len(skips)
	st.Skips = append(st.Skips, skips...)
	rawis, skips, err := readRawis(in.RawisCSV)
	if err != nil {
		return st, err
	}
	st.Invalid += len(skips)
	st.Skips = append(st.Skips, skips...)
	scholarSources, err := readScholarSources(in.SourcesJSON)
	if err != nil {
		return st, err
	}

	explainedBySource := make(map[string]map[explainKey]explained, len(in.Sources))
	for _, src := range in.Sources {
		m, err := loadExplained(in.DataDir, src.Folder)
		if err != nil {
			return st, err
		}
		explainedBySource[src.Name] = m
	}

	af, err := fsx.Create(dbPath)
	if err != nil {
		return st, err
	}
	db, err := sql.Open("sqlite", "file:"+af.TempPath()+"?_pragma=foreign_keys(1)")
	if err != nil {
		af.Abort()
		return st, err
	}
	// 单连接：PRAGMA 与事务必须落在同一个连接上。
	db.SetMaxOpenConns(1)

	if err := load(ctx, db, &st, in, hadiths, rawis, scholarSources, explainedBySource); err != nil {
		_ = db.Close()
		af.Abort()
		return st, err
	}
	if err := db.Close(); err != nil {
		af.Abort()
		return st, err
	}
	if err := af.Commit(); err != nil {
		return st, err
	}
	return st, nil
}

func load(ctx context.Context, db *sql.DB, st *Stats, in Inputs, hadiths []hadithRow, rawis []rawiRow, scholarSources []domain.ScholarSources, explainedBySource map[string]map[explainKey]explained) error {
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("建表失败：%w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	known, err := insertRawis(ctx, tx, st, in.RawisCSV, rawis)
	if err != nil {
		return err
	}
	inserted, err := insertHadiths(ctx, tx, st, in.HadithsCSV, hadiths, explainedBySource)
	if err != nil {
		return err
	}
	if err := insertChains(ctx, tx, st, in.HadithsCSV, inserted, known); err != nil {
		return err
	}
	if err := insertSources(ctx, tx, st, in.SourcesJSON, scholarSources, known); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRawis(ctx context.Context, tx *sql.Tx, st *Stats, input string, rawis []rawiRow) (map[int64]struct{}, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rawis (scholar_indx, name, full_name, grade, parents,
        birth_date_hijri, birth_date_gregorian, death_date_hijri, death_date_gregorian, death_place)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	known := make(map[int64]struct{}, len(rawis))
	for _, r := range rawis {
		if _, dup := known[r.ScholarIndx]; dup {
			st.DuplicateRawis++
			st.skip(input, r.Row, domain.ErrCodeDuplicateKey, fmt.Sprintf("scholar_indx=%d 重复", r.ScholarIndx))
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.ScholarIndx, r.Name, r.FullName, r.Grade, r.Parents,
			nullInt16(r.BirthDateHijri), nullInt16(r.BirthDateGregorian),
			nullInt16(r.DeathDateHijri), nullInt16(r.DeathDateGregorian), r.DeathPlace); err != nil {
			return nil, fmt.Errorf("写入 rawis(scholar_indx=%d) 失败：%w", r.ScholarIndx, err)
		}
		known[r.ScholarIndx] = struct{}{}
		st.Rawis++
	}
	return known, nil
}

type hadithKey struct {
	source    string
	chapterNo int64
	hadithNo  string
}

// insertHadiths 按 (source, chapter_no, hadith_no) 去重（先到先得）。
// 配置了解释数据的来源：命中的行带上 explanation，text_ar 换成解释数据集里的原文；
// 同一来源内 hadith_id 重复的后续行丢弃。
func insertHadiths(ctx context.Context, tx *sql.Tx, st *Stats, input string, rows []hadithRow, explainedBySource map[string]map[explainKey]explained) ([]hadithRow, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hadiths (hadith_id, source, chapter_no, hadith_no, chapter, text_ar, text_en, explanation)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	seen := make(map[hadithKey]struct{}, len(rows))
	usedIDs := make(map[string]map[int64]struct{}, len(explainedBySource))
	out := make([]hadithRow, 0, len(rows))

	for _, r := range rows {
		h := r.Hadith
		k := hadithKey{h.Source, h.ChapterNo, h.HadithNo}
		if _, dup := seen[k]; dup {
			st.Duplicates++
			st.skip(input, r.Row, domain.ErrCodeDuplicateKey, fmt.Sprintf("(%s, %d, %s) 重复", h.Source, h.ChapterNo, h.HadithNo))
			continue
		}
		seen[k] = struct{}{}

		if ex, ok := explainedBySource[h.Source]; ok {
			ids := usedIDs[h.Source]
			if ids == nil {
				ids = make(map[int64]struct{})
				usedIDs[h.Source] = ids
			}
			if _, dup := ids[h.HadithID]; dup {
				st.Duplicates++
				st.skip(input, r.Row, domain.ErrCodeDuplicateKey, fmt.Sprintf("%s 中 hadith_id=%d 重复", h.Source, h.HadithID))
				continue
			}
			ids[h.HadithID] = struct{}{}

			if e, ok := ex[explainKey{rowID: r.RowID, hadithNo: h.HadithNo}]; ok {
				if e.Explanation != "" {
					v := e.Explanation
					h.Explanation = &v
					st.Explained[h.Source]++
				}
				if e.HadithText != "" {
					h.TextAr = e.HadithText
				}
			}
		}

		if _, err := stmt.ExecContext(ctx, h.HadithID, h.Source, h.ChapterNo, h.HadithNo, h.Chapter, h.TextAr, h.TextEn, nullString(h.Explanation)); err != nil {
			return nil, fmt.Errorf("写入 hadiths(%s/%d/%s) 失败：%w", h.Source, h.ChapterNo, h.HadithNo, err)
		}
		r.Hadith = h
		out = append(out, r)
		st.Hadiths++
	}
	return out, nil
}

// insertChains 写入传述链。position 是学者在链中首次出现的次序（从 1 开始）；
// 指向未知学者的环节跳过，但仍占用其次序。有环节被跳过的圣训记一条 Skip。
func insertChains(ctx context.Context, tx *sql.Tx, st *Stats, input string, hadiths []hadithRow, known map[int64]struct{}) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO hadith_chains (source, chapter_no, hadith_no, scholar_indx, position)
        VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range hadiths {
		h := r.Hadith
		ids, invalid := splitChain(h.ChainIndx)
		st.DanglingLinks += invalid
		var unknown []string
		for i, id := range ids {
			if _, ok := known[id]; !ok {
				st.DanglingLinks++
				unknown = append(unknown, strconv.FormatInt(id, 10))
				continue
			}
			link := domain.ChainLink{Source: h.Source, ChapterNo: h.ChapterNo, HadithNo: h.HadithNo, ScholarIndx: id, Position: i + 1}
			if _, err := stmt.ExecContext(ctx, link.Source, link.ChapterNo, link.HadithNo, link.ScholarIndx, link.Position); err != nil {
				return fmt.Errorf("写入 hadith_chains(%s/%d/%s, %d) 失败：%w", h.Source, h.ChapterNo, h.HadithNo, id, err)
			}
			st.Chains++
		}
		if invalid > 0 || len(unknown) > 0 {
			st.skip(input, r.Row, domain.ErrCodeDanglingRef, fmt.Sprintf("(%s, %d, %s) 传述链跳过：未知学者 [%s]，无法解析 %d 个",
				h.Source, h.ChapterNo, h.HadithNo, strings.Join(unknown, ", "), invalid))
		}
	}
	return nil
}

func insertSources(ctx context.Context, tx *sql.Tx, st *Stats, input string, entries []domain.ScholarSources, known map[int64]struct{}) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sources (scholar_indx, book_source, content) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, ok := known[e.ScholarID]; !ok {
			st.DanglingSources += len(e.Sources)
			st.skip(input, i+1, domain.ErrCodeDanglingRef, fmt.Sprintf("scholar_id=%d 不在 rawis 中，%d 条出处跳过", e.ScholarID, len(e.Sources)))
			continue
		}
		for _, s := range e.Sources {
			if _, err := stmt.ExecContext(ctx, e.ScholarID, s.BookSource, s.Content); err != nil {
				return fmt.Errorf("写入 sources(scholar_indx=%d) 失败：%w", e.ScholarID, err)
			}
			st.Sources++
		}
	}
	return nil
}

func nullInt16(v *int16) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// Execute 重建数据库。数据库本身一条结果；被丢弃的每条输入一条 skipped 结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	started := time.Now()
	key := fsx.Rel(eff.Root, eff.DBPath)

	st, err := Build(ctx, InputsFor(eff), eff.DBPath)
	if err != nil {
		code := domain.ErrCodeDBFailed
		if errors.Is(err, os.ErrNotExist) || fsx.IsReplaceRefused(err) {
			code = domain.ErrCodeIOFailed
		}
		it := domain.Fatal(Stage, key, code, err.Error())
		log.Error().Err(err).Str("db", eff.DBPath).Msg("重建数据库失败")
		hook.Call(1, 1, it, time.Since(started))
		return []domain.ItemResult{it}
	}

	ev := log.Info().
		Int("hadiths", st.Hadiths).
		Int("duplicates", st.Duplicates).
		Int("invalid_rows", st.Invalid).
		Int("rawis", st.Rawis).
		Int("chains", st.Chains).
		Int("dangling_links", st.DanglingLinks).
		Int("sources", st.Sources).
		Int("dangling_sources", st.DanglingSources)
	for name, n := range st.Explained {
		ev = ev.Int("explained_"+name, n)
	}
	ev.Msg("数据库重建完成")
	if st.DanglingLinks+st.DanglingSources > 0 {
		log.Warn().Int("links", st.DanglingLinks).Int("sources", st.DanglingSources).Msg("存在指向未知学者的引用，已跳过")
	}

	items := make([]domain.ItemResult, 0, len(st.Skips)+1)
	for _, sk := range st.Skips {
		items = append(items, sk.Item(eff.Root))
	}
	it := domain.Processed(Stage, key, key)
	items = append(items, it)
	hook.Call(1, 1, it, time.Since(started))
	return items
}

// Item 把 Skip 转为报告条目，key 为 "<相对 root 的输入路径>#<行序号>"。
func (sk Skip) Item(root string) domain.ItemResult {
	return domain.ItemResult{
		Key:       fsx.Rel(root, sk.Input) + "#" + strconv.Itoa(sk.Row),
		Stage:     Stage,
		Status:    domain.StatusSkipped,
		ErrorCode: sk.Code,
		ErrorMsg:  sk.Msg,
	}
}
