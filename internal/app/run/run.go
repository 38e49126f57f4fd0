// Package run 按子命令串联各阶段，并汇总为一份 RunReport。
package run

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/export"
	"github.com/John-Robertt/isnadprep/internal/match"
	"github.com/John-Robertt/isnadprep/internal/og"
	"github.com/John-Robertt/isnadprep/internal/publish"
	"github.com/John-Robertt/isnadprep/internal/scrape"
	"github.com/John-Robertt/isnadprep/internal/sources"
	"github.com/John-Robertt/isnadprep/internal/store"
)

// StageFunc 是每个阶段对外的统一入口。
type StageFunc func(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult

const CommandAll = "all"

// Commands 是 CLI 接受的子命令，按流水线顺序排列。
var Commands = []string{scrape.Stage, sources.Stage, match.Stage, store.Stage, export.Stage, og.Stage, publish.Stage, CommandAll}

// AllStages 是 all 命令依次执行的阶段。scrape 需要联网且耗时数小时，publish 需要凭据，二者都不包含在内。
var AllStages = []string{sources.Stage, match.Stage, store.Stage, export.Stage, og.Stage}

// DefaultStages 返回阶段名到实现的映射。
func DefaultStages() map[string]StageFunc {
	return map[string]StageFunc{
		scrape.Stage:  scrape.Execute,
		sources.Stage: sources.Execute,
		match.Stage:   match.Execute,
		store.Stage:   store.Execute,
		export.Stage:  export.Execute,
		og.Stage:      og.Execute,
		publish.Stage: publish.Execute,
	}
}

// IsCommand 判断 name 是否为已知子命令。
func IsCommand(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

// Plan 返回 command 需要执行的阶段列表。
func Plan(command string) ([]string, error) {
	if command == CommandAll {
		return AllStages, nil
	}
	if !IsCommand(command) {
		return nil, fmt.Errorf("未知命令：%q", command)
	}
	return []string{command}, nil
}

// Runner 持有阶段实现与事件出口；零值不可用，使用 NewRunner。
type Runner struct {
	Stages   map[string]StageFunc
	Log      zerolog.Logger
	Observer Observer
}

func NewRunner(log zerolog.Logger, obs Observer) *Runner {
	return &Runner{Stages: DefaultStages(), Log: log, Observer: obs}
}

// Execute 执行一个子命令，并返回对外稳定的 RunReport。
func Execute(ctx context.Context, command string, eff config.EffectiveConfig, log zerolog.Logger) domain.RunReport {
	return ExecuteWithObserver(ctx, command, eff, log, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, command string, eff config.EffectiveConfig, log zerolog.Logger, obs Observer) domain.RunReport {
	return NewRunner(log, obs).Execute(ctx, command, eff)
}

// Execute 依次执行 command 对应的阶段。
// 串联多个阶段时，某阶段出现 Fatal 条目（产物没有生成）则不再执行后续阶段；
// 单个处理单元的失败只记入报告，不影响后续阶段。
func (r *Runner) Execute(ctx context.Context, command string, eff config.EffectiveConfig) domain.RunReport {
	rr := domain.RunReport{
		Command:   command,
		Root:      eff.Root,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, 64),
	}
	if r.Observer != nil {
		r.Observer.OnStart(command, eff)
	}

	names, err := Plan(command)
	if err != nil {
		rr.Items = append(rr.Items, domain.Fatal("", "", domain.ErrCodeConfigInvalid, err.Error()))
		return finish(rr)
	}

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			rr.Items = append(rr.Items, domain.Fatal(name, "", domain.ErrCodeIOFailed, "已取消："+err.Error()))
			break
		}
		fn, ok := r.Stages[name]
		if !ok {
			rr.Items = append(rr.Items, domain.Fatal(name, "", domain.ErrCodeConfigInvalid, "阶段未注册："+name))
			break
		}

		started := time.Now()
		log := r.Log.With().Str("stage", name).Logger()
		items := fn(ctx, eff, log, r.hook())
		dur := time.Since(started)
		rr.Merge(domain.RunReport{Items: items})

		sum := summarize(items)
		if r.Observer != nil {
			r.Observer.OnPhaseDone(name, map[string]any{
				"processed": sum.Processed,
				"skipped":   sum.Skipped,
				"failed":    sum.Failed,
				"unmatched": sum.Unmatched,
			}, dur)
		}
		if fatal := countFatal(items); fatal > 0 && i+1 < len(names) {
			r.Log.Warn().Str("stage", name).Int("fatal", fatal).Strs("skipped_stages", names[i+1:]).Msg("阶段产物没有生成，停止后续阶段")
			break
		}
	}
	return finish(rr)
}

func (r *Runner) hook() domain.ItemHook {
	if r.Observer == nil {
		return nil
	}
	return func(done, total int, res domain.ItemResult, dur time.Duration) {
		r.Observer.OnItemDone(done, total, res, dur)
	}
}

func summarize(items []domain.ItemResult) domain.ReportSummary {
	tmp := domain.RunReport{Items: append([]domain.ItemResult(nil), items...)}
	tmp.Finalize()
	return tmp.Summary
}

func countFatal(items []domain.ItemResult) int {
	n := 0
	for _, it := range items {
		if it.Status == domain.StatusFailed && it.Fatal {
			n++
		}
	}
	return n
}

func finish(rr domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}
