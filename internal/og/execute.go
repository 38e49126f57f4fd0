package og

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
	"github.com/John-Robertt/isnadprep/internal/infra/imgx"
	"github.com/John-Robertt/isnadprep/internal/store"
)

const Stage = "og"

// NewRenderer 按配置组装 Renderer。logo 读取失败只记警告，卡片不带 logo。
func NewRenderer(eff config.EffectiveConfig, fonts *imgx.FontCache, log zerolog.Logger) *Renderer {
	logo, err := imgx.LoadLogo(eff.OG.Logo)
	if err != nil {
		log.Warn().Err(err).Str("logo", eff.OG.Logo).Msg("读取 logo 失败，卡片不带 logo")
	}
	return &Renderer{
		Fonts:       fonts,
		Logo:        logo,
		RegularFont: eff.OG.FontRegular,
		BoldFont:    eff.OG.FontBold,
	}
}

// Execute 规划并渲染全部卡片，最后写出 QA 用的 index.html。每张卡片一条结果。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	outDir := eff.OG.OutDir
	dbKey := fsx.Rel(eff.Root, eff.DBPath)

	db, err := store.Open(eff.DBPath)
	if err != nil {
		log.Error().Err(err).Str("db", eff.DBPath).Msg("打开数据库失败")
		return []domain.ItemResult{domain.Fatal(Stage, dbKey, domain.ErrCodeDBFailed, "打开数据库失败："+err.Error())}
	}
	jobs, st, err := Plan(ctx, db, eff.OG.Sources)
	_ = db.Close()
	if err != nil {
		log.Error().Err(err).Msg("读取卡片数据失败")
		return []domain.ItemResult{domain.Fatal(Stage, dbKey, domain.ErrCodeDBFailed, err.Error())}
	}
	log.Info().
		Int("narrators", st.Narrators).
		Int("hadiths", st.Hadiths).
		Int("chapters", st.Chapters).
		Int("collisions", st.Collisions).
		Int("blank", st.Blank).
		Int("workers", eff.OG.Workers).
		Msg("卡片规划完成")

	r := NewRenderer(eff, imgx.NewFontCache(8, log), log)

	items := make([]domain.ItemResult, 0, len(jobs)+1)
	counts := Render(ctx, r, outDir, jobs, config.ClampWorkers(eff.OG.Workers), func(done, total int, o Outcome) {
		key := fsx.Rel(eff.Root, o.Path)
		it := domain.Processed(Stage, key, key)
		if o.Err != nil {
			it = domain.Failed(Stage, key, o.Code, o.Err.Error())
			log.Warn().Err(o.Err).Str("kind", o.Job.Kind).Str("card", o.Job.Rel).Msg("生成卡片失败")
		}
		items = append(items, it)
		hook.Call(done, total, it, o.Dur)
	})

	key := fsx.Rel(eff.Root, filepath.Join(outDir, IndexFile))
	if err := WriteIndex(outDir, eff.PublicDir, eff.OG.SamplePerKind); err != nil {
		log.Error().Err(err).Msg("写出 index.html 失败")
		items = append(items, domain.Failed(Stage, key, domain.ErrCodeIOFailed, err.Error()))
	} else {
		items = append(items, domain.Processed(Stage, key, key))
	}

	log.Info().Int("ok", counts.OK).Int("failed", counts.Failed).Str("out", outDir).Msg("卡片生成完成")
	return items
}
