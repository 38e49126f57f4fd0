// Package export 把数据库投影为前端使用的 JSON 快照。
package export

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
	"github.com/John-Robertt/isnadprep/internal/store"
	"github.com/John-Robertt/isnadprep/internal/textx"
)

const Stage = "export"

// SearchIndex 返回全部圣训；正文与传述人名去音符并折叠空白。
func SearchIndex(ctx context.Context, db *sql.DB) ([]store.SearchRow, error) {
	rows, err := store.SearchRows(ctx, db)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].TextAr = textx.NormalizeArabic(rows[i].TextAr)
		rows[i].NarratorName = normalizePtr(rows[i].NarratorName)
	}
	if rows == nil {
		rows = []store.SearchRow{}
	}
	return rows, nil
}

// Hadiths 按 sources 的顺序拼接各来源中带解释的圣训。
func Hadiths(ctx context.Context, db *sql.DB, sources []string) ([]store.HadithRow, error) {
	out := []store.HadithRow{}
	for _, src := range sources {
		rows, err := store.ExplainedHadiths(ctx, db, src)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].TextAr = textx.NormalizeArabic(rows[i].TextAr)
			rows[i].NarratorName = normalizePtr(rows[i].NarratorName)
		}
		out = append(out, rows...)
	}
	return out, nil
}

func normalizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := textx.NormalizeArabic(*s)
	return &v
}

// Execute 依次写出 search_index.json 与 hadiths.json，每个文件一条结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	searchKey := fsx.Rel(eff.Root, eff.Export.SearchIndexPath)
	hadithsKey := fsx.Rel(eff.Root, eff.Export.HadithsPath)

	db, err := store.Open(eff.DBPath)
	if err != nil {
		log.Error().Err(err).Str("db", eff.DBPath).Msg("打开数据库失败")
		msg := "打开数据库失败：" + err.Error()
		return []domain.ItemResult{
			domain.Fatal(Stage, searchKey, domain.ErrCodeDBFailed, msg),
			domain.Fatal(Stage, hadithsKey, domain.ErrCodeDBFailed, msg),
		}
	}
	defer db.Close()

	type job struct {
		key  string
		path string
		load func() (any, int, error)
	}
	jobs := []job{
		{searchKey, eff.Export.SearchIndexPath, func() (any, int, error) {
			rows, err := SearchIndex(ctx, db)
			return rows, len(rows), err
		}},
		{hadithsKey, eff.Export.HadithsPath, func() (any, int, error) {
			rows, err := Hadiths(ctx, db, eff.Export.Sources)
			return rows, len(rows), err
		}},
	}

	items := make([]domain.ItemResult, 0, len(jobs))
	for i, j := range jobs {
		started := time.Now()
		var it domain.ItemResult
		v, n, err := j.load()
		switch {
		case err != nil:
			it = domain.Fatal(Stage, j.key, domain.ErrCodeDBFailed, err.Error())
			log.Error().Err(err).Str("output", j.key).Msg("查询失败")
		default:
			if err := fsx.WriteJSON(j.path, v, "  "); err != nil {
				it = domain.Fatal(Stage, j.key, domain.ErrCodeIOFailed, err.Error())
				log.Error().Err(err).Str("output", j.key).Msg("写出 JSON 失败")
				break
			}
			it = domain.Processed(Stage, j.key, j.key)
			log.Info().Int("rows", n).Str("output", j.key).Msg("导出完成")
		}
		items = append(items, it)
		hook.Call(i+1, len(jobs), it, time.Since(started))
	}
	return items
}
