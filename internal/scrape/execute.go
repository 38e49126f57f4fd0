package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/cache"
	"github.com/John-Robertt/isnadprep/internal/infra/csvx"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
	"github.com/John-Robertt/isnadprep/internal/infra/httpx"
)

const Stage = "scrape"

// Scraper 串行抓取：每次网络请求前在 Limiter 上等待一个令牌；命中页面缓存时既不发请求也不消耗令牌。
type Scraper struct {
	Client  *http.Client
	Cache   cache.Store
	Limiter *rate.Limiter
	BaseURL string
	Log     zerolog.Logger
}

// NewLimiter 返回每 delay 一个令牌、突发为 1 的限速器；delay<=0 表示不限速。
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Scholar 返回一个学者的资料。cached 表示结果来自页面缓存。
func (s *Scraper) Scholar(ctx context.Context, id int) (sch domain.Scholar, cached bool, err error) {
	if b, ok, err := s.Cache.ReadScholarHTML(id); err == nil && ok {
		if sch, err := Parse(id, b); err == nil {
			return sch, true, nil
		}
		// 坏缓存：忽略，走网络并覆盖。
		s.Log.Debug().Int("id", id).Msg("页面缓存无法解析，重新抓取")
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return domain.Scholar{}, false, err
		}
	}
	b, err := Fetch(ctx, s.Client, s.BaseURL, id)
	if err != nil {
		return domain.Scholar{}, false, &Error{ID: id, Stage: "fetch", Err: err}
	}
	sch, err = Parse(id, b)
	if err != nil {
		return domain.Scholar{}, false, &Error{ID: id, Stage: "parse", Err: err}
	}
	if !s.Cache.ReadOnly {
		if err := s.Cache.WriteScholarHTML(id, b); err != nil {
			s.Log.Warn().Err(err).Int("id", id).Msg("写入页面缓存失败")
		}
	}
	return sch, false, nil
}

// Execute 抓取 id_from..id_to 的全部学者，结束时原子写出 scholars_data.csv。
// 单个编号失败只记一条 failed 条目，对应行不写出。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	sc := eff.Scrape
	key := fsx.Rel(eff.Root, sc.Output)

	client, err := httpx.NewScrapeClient(sc.ProxyURL, sc.Retries)
	if err != nil {
		return []domain.ItemResult{domain.Fatal(Stage, "", domain.ErrCodeConfigInvalid, fmt.Sprintf("scrape.proxy_url 无效：%v", err))}
	}
	s := &Scraper{
		Client:  client,
		Cache:   cache.New(sc.CacheDir, false),
		Limiter: NewLimiter(sc.Delay),
		BaseURL: sc.BaseURL,
		Log:     log,
	}
	return s.Run(ctx, sc.IDFrom, sc.IDTo, sc.Output, key, hook)
}

// Run 是 Execute 的可测试主体。
func (s *Scraper) Run(ctx context.Context, from, to int, out, key string, hook domain.ItemHook) []domain.ItemResult {
	total := to - from + 1
	if total < 0 {
		total = 0
	}

	var items []domain.ItemResult
	rows := make([][]string, 0, total)
	var hits int
	for id := from; id <= to; id++ {
		if err := ctx.Err(); err != nil {
			items = append(items, domain.Fatal(Stage, "", domain.ErrCodeFetchFailed, fmt.Sprintf("在 ID=%d 处中断：%v", id, err)))
			break
		}

		started := time.Now()
		k := "scholar/" + strconv.Itoa(id)
		sch, cached, err := s.Scholar(ctx, id)

		res := domain.ItemResult{Key: k, Stage: Stage, Status: domain.StatusProcessed}
		switch {
		case err != nil:
			code := domain.ErrCodeFetchFailed
			var se *Error
			if errors.As(err, &se) && se.Stage == "parse" {
				code = domain.ErrCodeParseFailed
			}
			res = domain.Failed(Stage, k, code, humanize(err))
			items = append(items, res)
			s.Log.Warn().Err(err).Int("id", id).Msg("抓取学者页面失败")
		case cached:
			hits++
			rows = append(rows, sch.Record())
		default:
			rows = append(rows, sch.Record())
		}
		hook.Call(id-from+1, total, res, time.Since(started))
	}

	if err := csvx.WriteFile(out, domain.ScholarCSVHeader, rows); err != nil {
		s.Log.Error().Err(err).Str("output", out).Msg("写出学者 CSV 失败")
		return append(items, domain.Fatal(Stage, key, domain.ErrCodeIOFailed, err.Error()))
	}
	s.Log.Info().Int("rows", len(rows)).Int("cache_hits", hits).Int("failed", len(items)).Str("output", out).Msg("抓取完成")
	return append(items, domain.Processed(Stage, key, key))
}
