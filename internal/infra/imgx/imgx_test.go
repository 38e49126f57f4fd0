package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

func TestNewCard_BackgroundBorderCorners(t *testing.T) {
	img := NewCard(nil).Image()
	if img.Bounds().Dx() != Width || img.Bounds().Dy() != Height {
		t.Fatalf("尺寸不正确：%v", img.Bounds())
	}
	if got := img.RGBAAt(0, 0); got != Ink {
		t.Fatalf("边框应为黑色：%v", got)
	}
	if got := img.RGBAAt(Width-1, Height/2); got != Ink {
		t.Fatalf("右边框应为黑色：%v", got)
	}
	if got := img.RGBAAt(BorderWidth, BorderWidth); got != Ink {
		t.Fatalf("左上角装饰应为黑色：%v", got)
	}
	if got := img.RGBAAt(Width/2, Height/2); got != Background {
		t.Fatalf("中心应为底色：%v", got)
	}
}

func TestNewCard_LogoBottomRight(t *testing.T) {
	dir := t.TempDir()
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	red := color.RGBA{R: 0xFF, A: 0xFF}
	for y := 0; y < 100; y++ {
		for x := 0; x < 300; x++ {
			src.SetRGBA(x, y, red)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("编码失败：%v", err)
	}
	path := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	logo, err := LoadLogo(path)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if b := logo.Bounds(); b.Dx() != LogoWidth || b.Dy() != 50 {
		t.Fatalf("logo 应等比缩放到 150x50，实际 %v", b)
	}

	img := NewCard(logo).Image()
	c := img.RGBAAt(Width-LogoMargin-LogoWidth/2, Height-LogoMargin-25)
	if c.R < 200 || c.G > 50 || c.B > 50 {
		t.Fatalf("logo 区域应为红色：%v", c)
	}
}

func TestLoadLogo_Missing(t *testing.T) {
	logo, err := LoadLogo(filepath.Join(t.TempDir(), "nope.png"))
	if err != nil || logo != nil {
		t.Fatalf("缺少 logo 应返回 (nil, nil)：%v %v", logo, err)
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("  aaa bbb ccc  ", 7)
	if want := []string{"aaa bbb", "ccc"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
	if Wrap("   ", 10) != nil {
		t.Fatalf("空文本应返回 nil")
	}
}

func TestTextRight_DrawsInk(t *testing.T) {
	card := NewCard(nil)
	card.TextRight(&Face{fallback: basicfont.Face7x13}, "HELLO", Width-80, 100)
	img := card.Image()
	found := false
	for y := 100; y < 113 && !found; y++ {
		for x := Width - 80 - 40; x < Width-80; x++ {
			if img.RGBAAt(x, y) == Ink {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("右对齐文字区域没有墨迹")
	}
	b, err := card.PNG()
	if err != nil || len(b) == 0 {
		t.Fatalf("PNG 编码失败：%v", err)
	}
}

func TestFontCache_MissingFallsBack(t *testing.T) {
	fc := NewFontCache(4, zerolog.Nop())
	face, err := fc.Face(filepath.Join(t.TempDir(), "nope.ttf"), 40)
	if err != nil {
		t.Fatalf("缺少字体不应报错：%v", err)
	}
	if face.fallback != basicfont.Face7x13 {
		t.Fatalf("应退回内置字体")
	}
}

func TestFontCache_ParseErrorAndConcurrentLoad(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.ttf")
	if err := os.WriteFile(bad, []byte("not a font"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	good := filepath.Join(dir, "good.ttf")
	if err := os.WriteFile(good, goregular.TTF, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	fc := NewFontCache(4, zerolog.Nop())
	if _, err := fc.Face(bad, 40); err == nil {
		t.Fatalf("损坏的字体应报错")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			face, err := fc.Face(good, 40)
			if err != nil {
				errs <- err
				return
			}
			if face.Measure("abc") <= 0 {
				errs <- os.ErrInvalid
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("并发加载失败：%v", err)
	}
	if fc.fonts.Len() != 1 {
		t.Fatalf("只应缓存成功解析的字体，实际 %d", fc.fonts.Len())
	}
}

func goRegular(t *testing.T, size float64) *Face {
	t.Helper()
	path := filepath.Join(t.TempDir(), "go.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	face, err := NewFontCache(1, zerolog.Nop()).Face(path, size)
	if err != nil {
		t.Fatalf("加载字体失败：%v", err)
	}
	return face
}

func glyphOf(t *testing.T, f *Face, r rune) uint32 {
	t.Helper()
	g, ok := f.face.NominalGlyph(r)
	if !ok {
		t.Fatalf("字体缺少 %q", r)
	}
	return uint32(g)
}

func TestLayout_RTLParagraphPutsLatinRunLeft(t *testing.T) {
	f := goRegular(t, 40)
	l := f.Layout("ب Sahih")
	if len(l.Glyphs) < 7 || l.Width <= 0 {
		t.Fatalf("排版结果不完整：%+v", l)
	}
	if uint32(l.Glyphs[0].ID) != glyphOf(t, f, 'S') {
		t.Fatalf("RTL 段落中拉丁词应在左侧，第一个字形是 %d", l.Glyphs[0].ID)
	}
	last := l.Glyphs[len(l.Glyphs)-1]
	if uint32(last.ID) == glyphOf(t, f, 'h') {
		t.Fatalf("阿拉伯字母应在最右侧")
	}
	for i := 1; i < len(l.Glyphs); i++ {
		if l.Glyphs[i].X < l.Glyphs[i-1].X {
			t.Fatalf("字形应按从左到右排列：%+v", l.Glyphs)
		}
	}
}

func TestLayout_DigitsStayLTR(t *testing.T) {
	f := goRegular(t, 40)
	l := f.Layout("باب 12")
	if len(l.Glyphs) < 2 {
		t.Fatalf("排版结果不完整：%+v", l)
	}
	if uint32(l.Glyphs[0].ID) != glyphOf(t, f, '1') || uint32(l.Glyphs[1].ID) != glyphOf(t, f, '2') {
		t.Fatalf("数字应保持从左到右：%+v", l.Glyphs[:2])
	}
}

func TestTextRight_ShapedFaceDrawsInkInsideCard(t *testing.T) {
	f := goRegular(t, 48)
	card := NewCard(nil)
	card.TextRight(f, "HELLO", Width-80, 100)
	w := f.Measure("HELLO").Round()
	img := card.Image()
	found := false
	for y := 100; y < 160 && !found; y++ {
		for x := Width - 80 - w; x < Width-80; x++ {
			if c := img.RGBAAt(x, y); c.R < 0x40 && c.G < 0x40 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("右对齐文字区域没有墨迹")
	}

	// 超出卡片左边界的长行被裁剪，不应越界。
	card.TextRight(f, "HELLO HELLO HELLO HELLO HELLO HELLO HELLO HELLO HELLO", 100, 300)
}
