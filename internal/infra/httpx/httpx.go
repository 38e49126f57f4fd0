// Package httpx 提供抓取单个站点用的 HTTP client：固定 UA、每主机一条连接、
// 对网络错误与 429/5xx 做有界指数退避重试，并遵守 Retry-After。
package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultBackoff = 2 * time.Second
	defaultMaxWait = time.Minute

	// UserAgent 是抓取请求的固定标识。整个站点只有一个来源，不需要轮换。
	UserAgent = "isnadprep/1.0 (+https://github.com/John-Robertt/isnadprep)"
)

// Transport 在 Base 之上加重试。只对可重放请求（GET/HEAD 且无 body）重试。
type Transport struct {
	Base *http.Transport

	// RetryMax 是最大重试次数（不含首次尝试）。
	RetryMax int
	// Backoff 是第一次重试前的等待，之后每次翻倍；<=0 时用 defaultBackoff。
	Backoff time.Duration
	// MaxWait 是单次等待的上限（Retry-After 也受它约束）；<=0 时用 defaultMaxWait。
	MaxWait time.Duration

	// DisableKeepAlives 决定是否对 Request 设置 Close=true。
	DisableKeepAlives bool

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	max := t.RetryMax
	if max < 0 || !((req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil) {
		max = 0
	}

	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", UserAgent)
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil && !Retryable(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= max || ctx.Err() != nil {
			return resp, err
		}

		wait := t.backoff(attempt)
		if resp != nil {
			if d, ok := RetryAfter(resp.Header.Get("Retry-After"), t.clock()); ok {
				wait = d
			}
			// 读完再关，连接才能复用。
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}
		if limit := t.maxWait(); wait > limit {
			wait = limit
		}
		if err := t.wait(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// Retryable 判断状态码是否值得重试：限流与网关/服务端的临时错误。
func Retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// RetryAfter 解析 Retry-After（秒数或 HTTP 日期）。过去的日期返回 0。
func RetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, false
		}
		return time.Duration(n) * time.Second, true
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func (t *Transport) backoff(attempt int) time.Duration {
	b := t.Backoff
	if b <= 0 {
		b = defaultBackoff
	}
	if attempt > 10 {
		attempt = 10
	}
	return b << attempt
}

func (t *Transport) maxWait() time.Duration {
	if t.MaxWait > 0 {
		return t.MaxWait
	}
	return defaultMaxWait
}

func (t *Transport) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

func (t *Transport) wait(ctx context.Context, d time.Duration) error {
	if t.sleep != nil {
		return t.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewScrapeClient 构造抓取学者页面用的 HTTP client。
//
// 站点只有一个主机，请求本身已由上层限速，所以连接池收成一条。
// proxyURL 非空时走代理并禁用 keep-alive（代理池轮换依赖每请求新连接）。
func NewScrapeClient(proxyURL string, retries int) (*http.Client, error) {
	base := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		MaxConnsPerHost:       1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	if retries < 0 {
		retries = 0
	}
	return &http.Client{
		Transport: &Transport{
			Base:              base,
			RetryMax:          retries,
			DisableKeepAlives: disableKeepAlives,
		},
		// Client.Timeout 覆盖整个 Do（含重试之间的等待）。
		Timeout: defaultTimeout*time.Duration(retries+1) + defaultMaxWait*time.Duration(retries),
	}, nil
}
