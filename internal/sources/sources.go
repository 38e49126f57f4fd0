// Package sources 把学者页面中的“出处” HTML 片段切分为（书目出处, 引文内容）列表。
package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/csvx"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

const Stage = "sources"

// Extract 按 <hr> 切分片段。
//
// 第 0 段从第一个 div 的第一个子节点开始；第 i 段从 hr[i] 之后的兄弟节点开始。
// 每段内：第一个 <br> 之前的文本是书目出处，之后直到下一个 <hr> 为内容（<br> 记为换行）。
// 最后一个 hr 之后的内容忽略；出处或内容去空白后为空的段丢弃。
func Extract(fragment string) ([]domain.BookSource, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	hrs := doc.Find("hr").Nodes
	if len(hrs) == 0 {
		return nil, nil
	}

	var out []domain.BookSource
	if div := doc.Find("div").First(); div.Length() > 0 {
		if bs, ok := segment(div.Nodes[0].FirstChild); ok {
			out = append(out, bs)
		}
	}
	for i := 0; i+1 < len(hrs); i++ {
		if bs, ok := segment(hrs[i].NextSibling); ok {
			out = append(out, bs)
		}
	}
	return out, nil
}

func segment(start *html.Node) (domain.BookSource, bool) {
	var book, content strings.Builder

	n := start
	for ; n != nil && !isElement(n, atom.Br); n = n.NextSibling {
		book.WriteString(nodeText(n))
	}
	for ; n != nil && !isElement(n, atom.Hr); n = n.NextSibling {
		if isElement(n, atom.Br) {
			content.WriteByte('\n')
			continue
		}
		content.WriteString(nodeText(n))
	}

	bs := domain.BookSource{
		BookSource: strings.TrimSpace(book.String()),
		Content:    strings.TrimSpace(content.String()),
	}
	return bs, bs.BookSource != "" && bs.Content != ""
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n.Type == html.ElementNode && n.DataAtom == a
}

func nodeText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sb.WriteString(nodeText(c))
		}
		return sb.String()
	}
	return ""
}

// row 是 scholars_data.csv 中本阶段关心的三列。
type row struct {
	id      string
	name    string
	sources string
}

type outcome struct {
	entry *domain.ScholarSources
	err   error
}

// Execute 并发处理每一行，按输入顺序写出 scholars_sources.json。
// 只保留有姓名、至少一条出处且处理无错误的学者；单行失败形成一条 failed 条目，
// 没有姓名或出处的行形成一条 skipped 条目。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	in, out := eff.Extract.Input, eff.Extract.Output
	key := fsx.Rel(eff.Root, out)

	rows, err := readRows(in)
	if err != nil {
		log.Error().Err(err).Str("input", in).Msg("读取学者 CSV 失败")
		return []domain.ItemResult{domain.Fatal(Stage, key, readErrCode(err), err.Error())}
	}

	results := make([]outcome, len(rows))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.ClampWorkers(eff.Extract.Workers))
	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started := time.Now()
			results[i] = processRow(rows[i])

			res := domain.ItemResult{Key: rowKey(rows[i]), Stage: Stage, Status: domain.StatusProcessed}
			switch {
			case results[i].err != nil:
				res = domain.Failed(Stage, rowKey(rows[i]), domain.ErrCodeParseFailed, results[i].err.Error())
			case results[i].entry == nil:
				res.Status = domain.StatusSkipped
			}
			hook.Call(int(done.Add(1)), len(rows), res, time.Since(started))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return []domain.ItemResult{domain.Fatal(Stage, key, domain.ErrCodeIOFailed, err.Error())}
	}

	var items []domain.ItemResult
	entries := make([]domain.ScholarSources, 0, len(rows))
	for i, r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Str("scholar_id", rows[i].id).Msg("处理学者出处失败")
			items = append(items, domain.Failed(Stage, rowKey(rows[i]), domain.ErrCodeParseFailed, r.err.Error()))
			continue
		}
		if r.entry == nil {
			items = append(items, domain.ItemResult{
				Key:      rowKey(rows[i]),
				Stage:    Stage,
				Status:   domain.StatusSkipped,
				ErrorMsg: "没有姓名或出处",
			})
			continue
		}
		entries = append(entries, *r.entry)
	}

	if err := fsx.WriteJSON(out, entries, "    "); err != nil {
		log.Error().Err(err).Str("output", out).Msg("写出出处 JSON 失败")
		return append(items, domain.Fatal(Stage, key, domain.ErrCodeIOFailed, err.Error()))
	}
	log.Info().Int("rows", len(rows)).Int("kept", len(entries)).Int("dropped", len(items)).Str("output", out).Msg("出处提取完成")
	return append(items, domain.Processed(Stage, key, key))
}

func rowKey(r row) string { return "scholar/" + strings.TrimSpace(r.id) }

func readErrCode(err error) string {
	if csvx.IsParseError(err) {
		return domain.ErrCodeParseFailed
	}
	return domain.ErrCodeIOFailed
}

func processRow(r row) outcome {
	id, err := strconv.ParseInt(strings.TrimSpace(r.id), 10, 64)
	if err != nil {
		return outcome{err: fmt.Errorf("学者 ID 无效：%q", r.id)}
	}
	bs, err := Extract(r.sources)
	if err != nil {
		return outcome{err: err}
	}
	if strings.TrimSpace(r.name) == "" || len(bs) == 0 {
		return outcome{}
	}
	return outcome{entry: &domain.ScholarSources{ScholarID: id, Name: r.name, Sources: bs}}
}

func readRows(path string) ([]row, error) {
	tb, err := csvx.ReadFile(path, true)
	if err != nil {
		return nil, err
	}
	if err := tb.Require("ID", "Full Name", "Sources"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	iID, iName, iSrc := tb.Index("ID"), tb.Index("Full Name"), tb.Index("Sources")
	out := make([]row, 0, len(tb.Rows))
	for _, rec := range tb.Rows {
		out = append(out, row{
			id:      csvx.Field(rec, iID),
			name:    csvx.Field(rec, iName),
			sources: csvx.Field(rec, iSrc),
		})
	}
	return out, nil
}
