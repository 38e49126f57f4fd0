// Package scrape 顺序抓取学者传记页面并解析为 scholars_data.csv 的行。
package scrape

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/textx"
)

// PageURL 返回学者页面地址：baseURL 以 "ID=" 结尾，直接拼接编号。
func PageURL(baseURL string, id int) string {
	return baseURL + strconv.Itoa(id)
}

// Fetch 抓取一个学者页面。不做缓存与限速（由 Scraper 统一控制）。
func Fetch(ctx context.Context, c *http.Client, baseURL string, id int) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	if id <= 0 {
		return nil, errors.New("学者 ID 必须为正数")
	}
	return fetchURL(ctx, c, PageURL(baseURL, id))
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: strings.TrimSpace(resp.Header.Get("Location"))}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

// rowLabels 把表格第一列中的标签映射到对应字段。按顺序匹配，先命中者生效。
var rowLabels = []struct {
	label string
	set   func(s *domain.Scholar, v string)
}{
	{"Full Name:", func(s *domain.Scholar, v string) { s.FullName = v }},
	{"Parents:", func(s *domain.Scholar, v string) { s.Parents = v }},
	{"Siblings:", func(s *domain.Scholar, v string) { s.Siblings = v }},
	{"Spouse(s):", func(s *domain.Scholar, v string) { s.Spouses = v }},
	{"Children :", func(s *domain.Scholar, v string) { s.Children = v }},
}

// Parse 把学者页面解析为一行资料。纯函数：相同输入 => 相同输出。
//
// 页面上缺失的字段保持为空串；只有 HTML 为空或无法解析时返回错误。
func Parse(id int, html []byte) (domain.Scholar, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return domain.Scholar{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Scholar{}, err
	}

	s := domain.Scholar{ID: id}
	idStr := strconv.Itoa(id)

	if sel := doc.Find("div#hideshow" + idStr).First(); sel.Length() > 0 {
		h, err := goquery.OuterHtml(sel)
		if err != nil {
			return domain.Scholar{}, err
		}
		s.Sources = textx.CleanHTMLForCSV(h)
	}
	if sel := doc.Find("div#kamal" + idStr).First(); sel.Length() > 0 {
		h, err := goquery.OuterHtml(sel)
		if err != nil {
			return domain.Scholar{}, err
		}
		s.Kamal = textx.CleanHTMLForCSV(h)
	}

	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		head := strings.TrimSpace(cells.Eq(0).Text())
		for _, rl := range rowLabels {
			if strings.Contains(head, rl.label) {
				rl.set(&s, textx.NormalizeWhitespace(cells.Eq(1).Text()))
				return
			}
		}
	})
	return s, nil
}
