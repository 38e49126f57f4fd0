// Package textx 收敛所有“文本清洗”规则：阿拉伯语去音符、空白归一、名字清洗、HTML 入 CSV 前的清洗。
//
// 约束：这里的函数都是纯函数，且并发安全（可被任意 goroutine 调用）。
package textx

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// diacritics 覆盖阿拉伯语音符（tashkeel）、古兰经注记，以及会干扰检索的方向控制符。
var diacritics = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0610, Hi: 0x061A, Stride: 1},
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
		{Lo: 0x06D6, Hi: 0x06ED, Stride: 1},
		{Lo: 0x200E, Hi: 0x200F, Stride: 1},
		{Lo: 0x202A, Hi: 0x202E, Stride: 1},
		{Lo: 0x2066, Hi: 0x2069, Stride: 1},
	},
}

// StripDiacritics 删除音符与方向控制符。不做 NFD 分解：آ 这类预组合字母必须原样保留。
// 幂等：StripDiacritics(StripDiacritics(s)) == StripDiacritics(s)。
func StripDiacritics(s string) string {
	if s == "" {
		return s
	}
	// runes.Remove 的 Transformer 无状态；每次调用单独构造，避免跨 goroutine 共享。
	out, _, err := transform.String(runes.Remove(runes.In(diacritics)), s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeWhitespace 把任意连续空白折叠为单个空格，并去掉首尾空白。
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpace), " ")
}

// NormalizeArabic = StripDiacritics + NormalizeWhitespace（导出 JSON 时对正文与传述人名使用）。
func NormalizeArabic(s string) string {
	return NormalizeWhitespace(StripDiacritics(s))
}

// isSpace 额外把 0x1C..0x1F（文件/组/记录/单元分隔符）视为空白。
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1C && r <= 0x1F)
}

// CleanHTMLForCSV 让一段 HTML 能安全地放进单个 CSV 字段：
// 换行变空格、空白折叠、删除 NUL 与 Ctrl+Z。引号转义交给 encoding/csv。
func CleanHTMLForCSV(s string) string {
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
	s = NormalizeWhitespace(s)
	return strings.NewReplacer("\x00", "", "\x1a", "").Replace(s)
}

const nameNoise = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ-'()[],.‘;`/#1234567890"

// CleanArabicName 去掉拉丁字母、数字与标点噪声，以及敬语“رضي الله عنها/عنه”。
// 清洗后为空则返回原值（宁可保留脏数据，也不要产生空名字）。
func CleanArabicName(original string) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(nameNoise, r) {
			return -1
		}
		return r
	}, original)
	// 顺序不能换：后者是前者的前缀。
	clean = strings.ReplaceAll(clean, "رضي الله عنها", "")
	clean = strings.ReplaceAll(clean, "رضي الله عنه", "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return original
	}
	return clean
}

// Truncate 按 rune 截断，超出时追加 "..."。
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max]) + "..."
}
