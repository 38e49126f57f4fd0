package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// Error 是单个学者页面的可追溯错误；Stage 为 "fetch" 或 "parse"。
type Error struct {
	ID    int
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("id=%d stage=%s: %v", e.ID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// humanize 把抓取错误转成可操作的提示。
func humanize(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Stage == "parse" {
		return fmt.Sprintf("学者 %d 页面解析失败（站点结构可能变化或返回了空页面）：%v", se.ID, se.Err)
	}

	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("返回 HTTP %d（可能触发限流）。建议调大 scrape.delay_ms 或配置 scrape.proxy_url。", hs.StatusCode)
		case 404:
			return "返回 HTTP 404（该学者编号可能不存在）。"
		default:
			return hs.Error()
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return "抓取超时。建议检查网络/代理后重试。"
	}
	return fmt.Sprintf("抓取失败：%v", err)
}
