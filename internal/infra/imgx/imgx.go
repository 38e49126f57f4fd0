// Package imgx 提供 OG 卡片的绘制原语：底图、边框、角饰、logo 合成、右对齐文字与 PNG 编码。
package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 1200
	Height = 630

	BorderWidth = 8
	CornerSize  = 36

	LogoWidth  = 150
	LogoMargin = 40
)

var (
	Background = color.RGBA{R: 0xF8, G: 0xF0, B: 0xE3, A: 0xFF}
	Ink        = color.RGBA{A: 0xFF}
)

// Card 是一张待绘制的卡片。非并发安全：每个任务各自 NewCard。
type Card struct {
	img *image.RGBA
}

// NewCard 画出底色、边框与四角装饰；logo 非 nil 时合成到右下角。
func NewCard(logo image.Image) *Card {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	c := &Card{img: img}
	c.border()
	c.corners()
	if logo != nil {
		b := logo.Bounds()
		at := image.Pt(Width-b.Dx()-LogoMargin, Height-b.Dy()-LogoMargin)
		draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(b.Size())}, logo, b.Min, draw.Over)
	}
	return c
}

func (c *Card) Image() *image.RGBA { return c.img }

func (c *Card) border() {
	ink := image.NewUniform(Ink)
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, Width, BorderWidth),
		image.Rect(0, Height-BorderWidth, Width, Height),
		image.Rect(0, 0, BorderWidth, Height),
		image.Rect(Width-BorderWidth, 0, Width, Height),
	} {
		draw.Draw(c.img, r, ink, image.Point{}, draw.Src)
	}
}

// corners 在边框内侧四角各画一个直角三角形。
func (c *Card) corners() {
	in := BorderWidth
	for y := 0; y < CornerSize; y++ {
		for x := 0; x < CornerSize-y; x++ {
			c.img.SetRGBA(in+x, in+y, Ink)
			c.img.SetRGBA(Width-1-in-x, in+y, Ink)
			c.img.SetRGBA(in+x, Height-1-in-y, Ink)
			c.img.SetRGBA(Width-1-in-x, Height-1-in-y, Ink)
		}
	}
}

// TextRight 以 right 为右边界、top 为文字框顶部绘制一行逻辑顺序的文本。
func (c *Card) TextRight(face *Face, s string, right, top int) {
	if s == "" {
		return
	}
	c.drawText(face, s, fixed.I(right), top)
}

// EncodePNG 把卡片编码为 PNG。
func (c *Card) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}

// PNG 返回编码后的字节。
func (c *Card) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Wrap 按字符数折行（以空白为断点；超长单词单独成行）。空文本返回 nil。
func Wrap(s string, width int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if width <= 0 {
		return []string{s}
	}
	var out []string
	for _, line := range strings.Split(wordwrap.WrapString(s, uint(width)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// LoadLogo 读取 logo 并等比缩放到 LogoWidth 宽。文件不存在时返回 (nil, nil)。
func LoadLogo(path string) (image.Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("解码 logo 失败：%w", err)
	}
	return ScaleToWidth(src, LogoWidth)
}

// ScaleToWidth 用 CatmullRom 等比缩放。
func ScaleToWidth(src image.Image, width int) (image.Image, error) {
	sb := src.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	h := sb.Dy() * width / sb.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst, nil
}

// TextCenter 水平居中绘制一行文本。
func (c *Card) TextCenter(face *Face, s string, top int) {
	if s == "" {
		return
	}
	c.drawText(face, s, fixed.I(Width/2)+face.Measure(s)/2, top)
}
