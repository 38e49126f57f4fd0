package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/isnadprep/internal/app/run"
	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 条目数超过 quietAbove 的阶段只打印失败条目，其余靠 keepalive 行
// - keepalive：长时间无输出时定期打印一行进度
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	phaseStart  time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int
	skip  int

	quietAbove         int
	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		quietAbove:         50,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(command string, eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.phaseStart = now

	fmt.Fprintf(p.w, "[%s] isnadprep %s\n", now.Format("15:04:05"), command)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  root: %s\n", eff.Root)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  sources: %s\n", formatSources(eff.Sources))

	switch command {
	case "scrape":
		fmt.Fprintf(p.w, "  ids: %d..%d delay=%s retries=%d\n", eff.Scrape.IDFrom, eff.Scrape.IDTo, eff.Scrape.Delay, eff.Scrape.Retries)
		fmt.Fprintf(p.w, "  proxy: %s\n", onOff(eff.Scrape.ProxyURL != ""))
	case "publish":
		fmt.Fprintf(p.w, "  endpoint: %s bucket=%s prefix=%q\n", truncate(eff.Publish.Endpoint, 80), eff.Publish.Bucket, eff.Publish.Prefix)
	default:
		fmt.Fprintf(p.w, "  threshold: %g\n", eff.Match.Threshold)
		fmt.Fprintf(p.w, "  workers: match=%d sources=%d og=%d\n", eff.Match.Workers, eff.Extract.Workers, eff.OG.Workers)
	}

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  data: %s\n", eff.DataDir)
	fmt.Fprintf(p.w, "  db: %s\n", eff.DBPath)
	fmt.Fprintf(p.w, "  public: %s\n", eff.PublicDir)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()
	fmt.Fprintf(p.w, "阶段 %s: processed=%d skipped=%d failed=%d unmatched=%d (%s)\n\n",
		name,
		intField(fields, "processed"),
		intField(fields, "skipped"),
		intField(fields, "failed"),
		intField(fields, "unmatched"),
		formatShortDuration(dur),
	)

	p.total, p.done, p.ok, p.fail, p.skip = 0, 0, 0, 0, 0
	p.phaseStart = time.Now()
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 并发阶段里 idx 可能乱序到达，只取最大值。
	if idx > p.done {
		p.done = idx
	}
	p.total = total

	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
	case domain.StatusFailed:
		p.fail++
	case domain.StatusSkipped:
		p.skip++
	}

	if res.Status == domain.StatusFailed || res.Status == domain.StatusUnmatched || total <= p.quietAbove {
		fmt.Fprintln(p.w, formatItemLine(idx, total, res, dur))
		p.lastPrinted = time.Now()
	}

	if !p.tickerStarted && p.done < p.total {
		p.startTickerLocked()
	}
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done < p.total && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, formatProgressLine(p.done, p.total, p.ok, p.fail, p.skip, time.Since(p.phaseStart)))
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

func formatItemLine(idx, total int, res domain.ItemResult, dur time.Duration) string {
	key := res.Key
	if key == "" {
		key = "<" + orDefault(res.Stage, "run") + ">"
	}
	switch res.Status {
	case domain.StatusFailed:
		return fmt.Sprintf("[%d/%d] %s FAIL %s: %s (%s)", idx, total, key, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	case domain.StatusUnmatched:
		return fmt.Sprintf("[%d/%d] %s UNMATCHED %s (%s)", idx, total, key, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	case domain.StatusSkipped:
		return fmt.Sprintf("[%d/%d] %s SKIP (%s)", idx, total, key, formatShortDuration(dur))
	}
	if res.Output != "" && res.Output != key {
		return fmt.Sprintf("[%d/%d] %s OK -> %s (%s)", idx, total, key, res.Output, formatShortDuration(dur))
	}
	return fmt.Sprintf("[%d/%d] %s OK (%s)", idx, total, key, formatShortDuration(dur))
}

func formatProgressLine(done, total, ok, fail, skip int, elapsed time.Duration) string {
	return fmt.Sprintf("进度: done=%d/%d ok=%d fail=%d skip=%d elapsed=%s",
		done, total, ok, fail, skip, formatElapsed(elapsed),
	)
}

func formatSources(src []config.SourceConfig) string {
	if len(src) == 0 {
		return "(无)"
	}
	parts := make([]string, 0, len(src))
	for _, s := range src {
		parts = append(parts, s.Folder+"="+s.Name)
	}
	return strings.Join(parts, ", ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// truncate 按 rune 截断。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if max <= 0 || len(rs) <= max {
		return s
	}
	if max <= 3 {
		return string(rs[:max])
	}
	return string(rs[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
