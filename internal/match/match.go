// Package match 把外部解释数据集（候选）对齐到规范圣训数据集（参考）。
//
// 匹配是贪心且与顺序相关的：候选按输入顺序处理，每个候选只在“当前仍未匹配”的参考池中
// 取相似度最高者（并列取池中最靠前的一条），分数严格大于阈值才接受，接受后该参考立即移出池。
// 先到先得，不求全局最优。
package match

import (
	"context"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/isnadprep/internal/domain"
)

// DefaultThreshold 是默认接受阈值（0..100，严格大于才接受）。
const DefaultThreshold = 80.0

// minChunk 是单个 goroutine 至少负责的参考条数；池太小时不值得拆分。
const minChunk = 256

// Scorer 计算两段文本的相似度（0..100，对称）。
type Scorer func(a, b string) float64

type Options struct {
	Threshold float64
	// Workers 是单个候选对参考池打分时的并发度；<=1 表示串行。
	Workers int
	// Scorer 为 nil 时使用 Ratio，并启用基于字符直方图的剪枝。
	Scorer Scorer
}

// Result 是一次匹配的完整输出。Matches 按候选顺序排列；Unmatched 保持参考的原始顺序。
type Result struct {
	Matches   []domain.Match
	Unmatched []domain.Reference

	// Skipped 是没有解释（缺失或全空白）而被跳过的候选数。
	Skipped int
	// Dropped 是最高分未超过阈值而被丢弃的候选数。
	Dropped int
}

var indelParams = levenshtein.NewParams().SubCost(2)

// Ratio 返回 0..100 的归一化编辑相似度：替换代价为 2（等价于一删一插），
// 即 100 * (1 - indel 距离 / 两串总长)。两串皆空时为 100。
func Ratio(a, b string) float64 {
	return 100 * levenshtein.Similarity(a, b, indelParams)
}

// Match 执行贪心匹配。ctx 取消时返回 ctx.Err()，此时 Result 只包含已完成的部分。
func Match(ctx context.Context, cands []domain.Candidate, refs []domain.Reference, opts Options) (Result, error) {
	var res Result

	pool := make([]int, len(refs))
	for i := range pool {
		pool[i] = i
	}

	var profiles []profile
	if opts.Scorer == nil {
		profiles = make([]profile, len(refs))
		for i := range refs {
			profiles[i] = newProfile(refs[i].TextAr)
		}
	}

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			res.Unmatched = collect(refs, pool)
			return res, err
		}
		if !hasExplanation(c) {
			res.Skipped++
			continue
		}

		pos, score, err := best(ctx, c, refs, profiles, pool, opts)
		if err != nil {
			res.Unmatched = collect(refs, pool)
			return res, err
		}
		if pos < 0 || !(score > opts.Threshold) {
			res.Dropped++
			continue
		}

		ref := refs[pool[pos]]
		res.Matches = append(res.Matches, domain.Match{
			CandidateID: c.ID,
			ReferenceID: ref.ID,
			HadithNo:    ref.HadithNo,
			Score:       score,
		})
		pool = append(pool[:pos], pool[pos+1:]...)
	}

	res.Unmatched = collect(refs, pool)
	return res, nil
}

func hasExplanation(c domain.Candidate) bool {
	return strings.TrimSpace(c.Explanation) != ""
}

func collect(refs []domain.Reference, pool []int) []domain.Reference {
	out := make([]domain.Reference, 0, len(pool))
	for _, i := range pool {
		out = append(out, refs[i])
	}
	return out
}

// hit 是某一段池内的局部最优：pos 为池内下标，-1 表示没有任何候选超过下限。
type hit struct {
	pos   int
	score float64
}

// better 判断 a 是否优于 b：分数更高，或分数相同但池内位置更靠前。
func better(a, b hit) bool {
	if a.pos < 0 {
		return false
	}
	if b.pos < 0 {
		return true
	}
	if a.score != b.score {
		return a.score > b.score
	}
	return a.pos < b.pos
}

// best 返回候选在池中的最优位置与分数。拆分为多段并发扫描，合并规则与串行扫描一致。
func best(ctx context.Context, c domain.Candidate, refs []domain.Reference, profiles []profile, pool []int, opts Options) (int, float64, error) {
	if len(pool) == 0 {
		return -1, 0, nil
	}

	var cp profile
	if profiles != nil {
		cp = newProfile(c.Text)
	}

	scan := func(lo, hi int) hit {
		h := hit{pos: -1}
		if profiles == nil {
			for p := lo; p < hi; p++ {
				s := opts.Scorer(c.Text, refs[pool[p]].TextAr)
				if h.pos < 0 || s > h.score {
					h = hit{pos: p, score: s}
				}
			}
			return h
		}
		// 低于或等于 floor 的分数既不可能被接受，也不可能成为新的最优。
		floor := opts.Threshold
		for p := lo; p < hi; p++ {
			rp := &profiles[pool[p]]
			if cp.upperBound(rp) <= floor {
				continue
			}
			s, ok := cp.ratioAbove(rp, floor)
			if !ok {
				continue
			}
			h = hit{pos: p, score: s}
			floor = s
			if s >= 100 {
				break
			}
		}
		return h
	}

	workers := opts.Workers
	if max := len(pool) / minChunk; workers > max {
		workers = max
	}
	if workers <= 1 {
		h := scan(0, len(pool))
		return h.pos, h.score, nil
	}

	hits := make([]hit, workers)
	size := (len(pool) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		lo, hi := w*size, (w+1)*size
		if hi > len(pool) {
			hi = len(pool)
		}
		hits[w] = hit{pos: -1}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits[w] = scan(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -1, 0, err
	}

	out := hit{pos: -1}
	for _, h := range hits {
		if better(h, out) {
			out = h
		}
	}
	return out.pos, out.score, nil
}

// profile 是一段文本的预处理结果：rune 序列与按 rune 排序的直方图。
type profile struct {
	runes []rune
	hist  []runeCount
}

type runeCount struct {
	r rune
	n int
}

func newProfile(s string) profile {
	rs := []rune(s)
	sorted := append([]rune(nil), rs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	hist := make([]runeCount, 0, len(sorted))
	for _, r := range sorted {
		if n := len(hist); n > 0 && hist[n-1].r == r {
			hist[n-1].n++
			continue
		}
		hist = append(hist, runeCount{r: r, n: 1})
	}
	return profile{runes: rs, hist: hist}
}

// upperBound 给出 Ratio 的上界：indel 距离不小于两串字符直方图的 L1 差。
func (p *profile) upperBound(q *profile) float64 {
	total := len(p.runes) + len(q.runes)
	if total == 0 {
		return 100
	}
	diff := 0
	i, j := 0, 0
	for i < len(p.hist) && j < len(q.hist) {
		a, b := p.hist[i], q.hist[j]
		switch {
		case a.r == b.r:
			if a.n > b.n {
				diff += a.n - b.n
			} else {
				diff += b.n - a.n
			}
			i++
			j++
		case a.r < b.r:
			diff += a.n
			i++
		default:
			diff += b.n
			j++
		}
	}
	for ; i < len(p.hist); i++ {
		diff += p.hist[i].n
	}
	for ; j < len(q.hist); j++ {
		diff += q.hist[j].n
	}
	return score(diff, total)
}

// ratioAbove 计算 Ratio，分数不超过 floor 时 ok=false。
// 距离总是完整计算（带 maxCost 的 Calculate 提前退出时只给出下界）；剪枝只靠 upperBound。
func (p *profile) ratioAbove(q *profile, floor float64) (float64, bool) {
	total := len(p.runes) + len(q.runes)
	if total == 0 {
		return 100, 100 > floor
	}
	dist, _, _ := levenshtein.Calculate(p.runes, q.runes, 0, 1, 2, 1)
	s := score(dist, total)
	return s, s > floor
}

func score(dist, total int) float64 {
	return 100 * (1 - float64(dist)/float64(total))
}
