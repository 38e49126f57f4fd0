package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	gtfont "github.com/go-text/typesetting/font"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/singleflight"
)

// FontCache 按路径缓存已解析的字体。并发安全。
//
// 解析后的 *gtfont.Font 只读、可共享；Face 带整形缓存，
// 每次渲染都通过 Face 新建一个，不跨 goroutine 使用。
type FontCache struct {
	fonts *lru.Cache[string, *gtfont.Font]
	group singleflight.Group
	log   zerolog.Logger
}

// NewFontCache 创建容量为 size 的缓存（至少 1）。
func NewFontCache(size int, log zerolog.Logger) *FontCache {
	if size < 1 {
		size = 1
	}
	// 只有 size <= 0 才会出错。
	c, _ := lru.New[string, *gtfont.Font](size)
	return &FontCache{fonts: c, log: log}
}

// Face 返回 path 字体在 size 像素字号下的新 Face。
// 字体文件不存在时退回内置位图字体（只记录一次警告），不算错误。
func (c *FontCache) Face(path string, size float64) (*Face, error) {
	f, err := c.load(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return &Face{fallback: basicfont.Face7x13}, nil
	}
	return &Face{face: gtfont.NewFace(f), size: fixed.Int26_6(size * 64)}, nil
}

// load 返回 nil 字体表示文件不存在（已缓存为回退）。
func (c *FontCache) load(path string) (*gtfont.Font, error) {
	if f, ok := c.fonts.Get(path); ok {
		return f, nil
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if f, ok := c.fonts.Get(path); ok {
			return f, nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				c.log.Warn().Str("font", path).Msg("字体文件不存在，使用内置字体")
				c.fonts.Add(path, nil)
				return (*gtfont.Font)(nil), nil
			}
			return nil, err
		}
		face, err := gtfont.ParseTTF(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("解析字体 %s 失败：%w", path, err)
		}
		c.fonts.Add(path, face.Font)
		return face.Font, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gtfont.Font), nil
}
