package og

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

// Outcome 是单个任务的结果：Err 为 nil 表示 Path 已写出。
type Outcome struct {
	Job  Job
	Path string
	Code string
	Err  error
	Dur  time.Duration
}

// Counts 汇总一批任务的成功与失败数。
type Counts struct {
	OK     int
	Failed int
}

// Render 在固定数量的 worker 上渲染并写出全部任务。
// 单个任务的错误（含 panic）只记在它自己的 Outcome 上，不影响其他任务。
// onDone 在收集 goroutine 上串行调用，done 从 1 开始。
func Render(ctx context.Context, r *Renderer, outDir string, jobs []Job, workers int, onDone func(done, total int, o Outcome)) Counts {
	if workers < 1 {
		workers = 1
	}

	queue := make(chan Job)
	results := make(chan Outcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				started := time.Now()
				o := renderOne(ctx, r, outDir, j)
				o.Dur = time.Since(started)
				results <- o
			}
		}()
	}

	go func() {
		for _, j := range jobs {
			queue <- j
		}
		close(queue)
		wg.Wait()
		close(results)
	}()

	var c Counts
	done := 0
	for o := range results {
		done++
		if o.Err != nil {
			c.Failed++
		} else {
			c.OK++
		}
		if onDone != nil {
			onDone(done, len(jobs), o)
		}
	}
	return c
}

func renderOne(ctx context.Context, r *Renderer, outDir string, j Job) (o Outcome) {
	o = Outcome{Job: j, Path: filepath.Join(outDir, filepath.FromSlash(j.Rel))}
	if err := ctx.Err(); err != nil {
		o.Code, o.Err = domain.ErrCodeRenderFailed, err
		return o
	}
	defer func() {
		if p := recover(); p != nil {
			o.Code, o.Err = domain.ErrCodeRenderFailed, fmt.Errorf("渲染 panic：%v", p)
		}
	}()

	card, err := j.Draw(r)
	if err != nil {
		o.Code, o.Err = domain.ErrCodeRenderFailed, err
		return o
	}
	b, err := card.PNG()
	if err != nil {
		o.Code, o.Err = domain.ErrCodeRenderFailed, err
		return o
	}
	if err := fsx.WriteFile(o.Path, b); err != nil {
		o.Code, o.Err = domain.ErrCodeIOFailed, err
	}
	return o
}
