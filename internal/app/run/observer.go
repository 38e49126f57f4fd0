package run

import (
	"time"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在执行开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(command string, eff config.EffectiveConfig)
	// OnPhaseDone 在每个阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在阶段内某个处理单元完成时调用；idx/total 以阶段为范围。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
