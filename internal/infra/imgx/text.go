package imgx

import (
	"image"
	"math"
	"sort"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var arabic = language.NewLanguage("ar")

// Face 是一个字体在某字号下的排版句柄。
// 整形走 HarfBuzz（连写、lam-alef 等由字体自己的 GSUB/GPOS 决定），
// 混排文本先按 bidi 与书写系统分段，再按 RTL 段落排出视觉顺序。
// 非并发安全。
type Face struct {
	face *gtfont.Face
	size fixed.Int26_6

	// fallback 非 nil 时按位图字体逐字绘制，不整形。
	fallback xfont.Face

	shaper  shaping.HarfbuzzShaper
	seg     shaping.Segmenter
	wrapper shaping.LineWrapper
}

// ResolveFace 让 Segmenter 把所有字符都分到同一个字体。
func (f *Face) ResolveFace(rune) *gtfont.Face { return f.face }

// Glyph 是排好的一个字形，X/Y 为相对行首基线的像素偏移（Y 向下为正）。
type Glyph struct {
	ID   gtfont.GID
	X, Y fixed.Int26_6
}

// Line 是一行排版结果，字形按从左到右的视觉顺序排列。
type Line struct {
	Glyphs  []Glyph
	Width   fixed.Int26_6
	Ascent  fixed.Int26_6
	Descent fixed.Int26_6
}

// Layout 把逻辑顺序的文本排成一行（段落方向 RTL）。
func (f *Face) Layout(s string) Line {
	text := []rune(s)
	if len(text) == 0 || f.face == nil {
		return Line{}
	}
	in := shaping.Input{
		Text:      text,
		RunEnd:    len(text),
		Direction: di.DirectionRTL,
		Face:      f.face,
		Size:      f.size,
		Language:  arabic,
	}
	runs := f.seg.Split(in, f)
	outs := make([]shaping.Output, len(runs))
	for i, r := range runs {
		outs[i] = f.shaper.Shape(r)
	}
	lines, _ := f.wrapper.WrapParagraph(shaping.WrapConfig{Direction: di.DirectionRTL}, math.MaxInt32, text, shaping.NewSliceIterator(outs))

	var out Line
	for _, l := range lines {
		ordered := append([]shaping.Output(nil), l...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].VisualIndex < ordered[j].VisualIndex })
		for _, run := range ordered {
			if run.LineBounds.Ascent > out.Ascent {
				out.Ascent = run.LineBounds.Ascent
			}
			if -run.LineBounds.Descent > out.Descent {
				out.Descent = -run.LineBounds.Descent
			}
			for _, g := range run.Glyphs {
				out.Glyphs = append(out.Glyphs, Glyph{ID: g.GlyphID, X: out.Width + g.XOffset, Y: -g.YOffset})
				out.Width += g.Advance
			}
		}
	}
	return out
}

// Measure 返回 s 排成一行后的宽度。
func (f *Face) Measure(s string) fixed.Int26_6 {
	if f.fallback != nil {
		return xfont.MeasureString(f.fallback, s)
	}
	return f.Layout(s).Width
}

// drawText 以 right 为右边界、top 为文字框顶部绘制一行。
func (c *Card) drawText(f *Face, s string, right fixed.Int26_6, top int) {
	if f.fallback != nil {
		d := &xfont.Drawer{Dst: c.img, Src: image.NewUniform(Ink), Face: f.fallback}
		d.Dot = fixed.Point26_6{X: right - d.MeasureString(s), Y: fixed.I(top) + f.fallback.Metrics().Ascent}
		d.DrawString(s)
		return
	}
	l := f.Layout(s)
	c.drawLine(f, l, right-l.Width, fixed.I(top)+l.Ascent)
}

// drawLine 逐个光栅化字形轮廓。位图/SVG 字形不绘制。
func (c *Card) drawLine(f *Face, l Line, left, baseline fixed.Int26_6) {
	scale := float32(f.size) / 64 / float32(f.face.Upem())
	ink := image.NewUniform(Ink)
	for _, g := range l.Glyphs {
		outline, ok := f.face.GlyphData(g.ID).(gtfont.GlyphOutline)
		if !ok || len(outline.Segments) == 0 {
			continue
		}
		ox := float32(left+g.X) / 64
		oy := float32(baseline+g.Y) / 64
		pt := func(p gtfont.SegmentPoint) (float32, float32) { return ox + p.X*scale, oy - p.Y*scale }

		minX, minY := float32(math.Inf(1)), float32(math.Inf(1))
		maxX, maxY := float32(math.Inf(-1)), float32(math.Inf(-1))
		for _, seg := range outline.Segments {
			for _, p := range seg.ArgsSlice() {
				x, y := pt(p)
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
		x0, y0 := int(math.Floor(float64(minX))), int(math.Floor(float64(minY)))
		w, h := int(math.Ceil(float64(maxX)))-x0+1, int(math.Ceil(float64(maxY)))-y0+1
		if w <= 0 || h <= 0 {
			continue
		}

		r := vector.NewRasterizer(w, h)
		local := func(p gtfont.SegmentPoint) (float32, float32) {
			x, y := pt(p)
			return x - float32(x0), y - float32(y0)
		}
		for i, seg := range outline.Segments {
			switch seg.Op {
			case ot.SegmentOpMoveTo:
				if i > 0 {
					r.ClosePath()
				}
				r.MoveTo(local(seg.Args[0]))
			case ot.SegmentOpLineTo:
				r.LineTo(local(seg.Args[0]))
			case ot.SegmentOpQuadTo:
				bx, by := local(seg.Args[0])
				cx, cy := local(seg.Args[1])
				r.QuadTo(bx, by, cx, cy)
			case ot.SegmentOpCubeTo:
				bx, by := local(seg.Args[0])
				cx, cy := local(seg.Args[1])
				dx, dy := local(seg.Args[2])
				r.CubeTo(bx, by, cx, cy, dx, dy)
			}
		}
		r.ClosePath()
		// Rasterizer.Draw 不裁剪目标区域，先画进遮罩再由 DrawMask 合成。
		mask := image.NewAlpha(image.Rect(0, 0, w, h))
		r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
		draw.DrawMask(c.img, image.Rect(x0, y0, x0+w, y0+h), ink, image.Point{}, mask, image.Point{}, draw.Over)
	}
}
