// Package og 为站点页面生成社交分享预览图（OG 卡片）。
package og

import (
	"image"
	"strconv"

	"github.com/John-Robertt/isnadprep/internal/infra/imgx"
	"github.com/John-Robertt/isnadprep/internal/store"
	"github.com/John-Robertt/isnadprep/internal/textx"
)

// 文字右边界。
const textRight = imgx.Width - 80

// Renderer 持有渲染卡片所需的只读资源；可被多个 worker 共享。
type Renderer struct {
	Fonts       *imgx.FontCache
	Logo        image.Image
	RegularFont string
	BoldFont    string
}

type faceSpec struct {
	bold bool
	size float64
}

// faces 为一次渲染创建独立的 Face（Face 非并发安全，不在 worker 间共享）。
func (r *Renderer) faces(specs ...faceSpec) ([]*imgx.Face, error) {
	out := make([]*imgx.Face, 0, len(specs))
	for _, s := range specs {
		path := r.RegularFont
		if s.bold {
			path = r.BoldFont
		}
		f, err := r.Fonts.Face(path, s.size)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// wrapped 把逻辑顺序文本折行后逐行绘制，返回下一行的 y。
func wrapped(card *imgx.Card, face *imgx.Face, s string, width, top, lineHeight int) int {
	lines := imgx.Wrap(s, width)
	for i, line := range lines {
		card.TextRight(face, line, textRight, top+i*lineHeight)
	}
	return top + len(lines)*lineHeight
}

// narratorTitle 是名字加上等级对应的祈福语（若有）。
func narratorTitle(n store.Narrator) string {
	if b := textx.Blessing(textx.ArabicGrade(n.Grade)); b != "" {
		return n.Name + " " + b
	}
	return n.Name
}

func hadithTitle(h store.HadithCard) string {
	return "حديث رقم " + textx.ToArabicNumerals(h.HadithNo)
}

func chapterTitle(c store.ChapterCard) string {
	return "باب " + textx.ToArabicNumerals(strconv.FormatInt(c.ChapterNo, 10))
}

func (r *Renderer) Narrator(n store.Narrator) (*imgx.Card, error) {
	fs, err := r.faces(faceSpec{true, 70}, faceSpec{false, 40}, faceSpec{false, 32})
	if err != nil {
		return nil, err
	}

	card := imgx.NewCard(r.Logo)
	card.TextRight(fs[0], narratorTitle(n), textRight, 80)
	card.TextRight(fs[1], "سيرة الراوي", textRight, 180)

	var details []string
	if n.FullName != "" {
		details = append(details, "الاسم الكامل: "+n.FullName)
	}
	if n.Grade != "" {
		details = append(details, "الرتبة: "+textx.ArabicGrade(n.Grade))
	}
	if n.DeathDateHijri != nil && *n.DeathDateHijri != 0 {
		details = append(details, "تاريخ الوفاة: "+textx.ToArabicNumerals(strconv.FormatInt(*n.DeathDateHijri, 10))+" هـ")
	}
	y := 250
	for _, d := range details {
		y = wrapped(card, fs[2], d, 40, y, 45) + 20
	}
	return card, nil
}

// 正文超过该长度（rune）时截断。
const maxHadithRunes = 300

func (r *Renderer) Hadith(h store.HadithCard) (*imgx.Card, error) {
	fs, err := r.faces(faceSpec{true, 60}, faceSpec{true, 40}, faceSpec{false, 36})
	if err != nil {
		return nil, err
	}

	card := imgx.NewCard(r.Logo)
	card.TextRight(fs[0], hadithTitle(h), textRight, 60)
	card.TextRight(fs[1], textx.ArabicSource(h.Source), textRight, 140)
	if h.TextAr != "" {
		wrapped(card, fs[2], textx.Truncate(h.TextAr, maxHadithRunes), 30, 220, 50)
	}
	return card, nil
}

func (r *Renderer) Chapter(c store.ChapterCard) (*imgx.Card, error) {
	fs, err := r.faces(faceSpec{true, 60}, faceSpec{true, 50}, faceSpec{false, 40})
	if err != nil {
		return nil, err
	}

	card := imgx.NewCard(r.Logo)
	card.TextRight(fs[0], textx.ArabicSource(c.Source), textRight, 80)
	card.TextRight(fs[1], chapterTitle(c), textRight, 180)
	y := 260
	if c.Chapter != "" {
		y = wrapped(card, fs[2], c.Chapter, 35, y, 60) + 40
	}
	card.TextRight(fs[2], "عدد الأحاديث: "+textx.ToArabicNumerals(strconv.Itoa(c.HadithCount)), textRight, y)
	return card, nil
}

// Static 生成不依赖数据的页面卡片（首页、学者列表、搜索）。
func (r *Renderer) Static(title, subtitle string) (*imgx.Card, error) {
	fs, err := r.faces(faceSpec{true, 70}, faceSpec{false, 40})
	if err != nil {
		return nil, err
	}

	card := imgx.NewCard(r.Logo)
	card.TextCenter(fs[0], title, imgx.Height/2-100)
	card.TextCenter(fs[1], subtitle, imgx.Height/2)
	return card, nil
}
