package textx

import "strings"

var bookMap = map[string]string{
	"Jami' al-Tirmidhi": "جامع الترمذي",
	"Sahih Bukhari":     "صحيح البخاري",
	"Sahih Muslim":      "صحيح مسلم",
	"Sunan Abi Da'ud":   "سنن أبي داود",
	"Sunan Ibn Majah":   "سنن ابن ماجه",
	"Sunan an-Nasa'i":   "سنن النسائي",
}

// ArabicSource 返回书名的阿拉伯语写法；未知书名原样返回。
func ArabicSource(book string) string {
	if v, ok := bookMap[strings.TrimSpace(book)]; ok {
		return v
	}
	return book
}

// gradeFamilies 按前缀归类（数据里常带 [Nth generation] / [Hanafi] 之类的后缀）。
// 顺序有意义：更长的前缀必须排在前面。
var gradeFamilies = []struct {
	prefix string
	arabic string
}{
	{"Prophet's Relative [Non-Muslim]", "من أقارب النبي (غير مسلم)"},
	{"Prophet's Relative", "من أهل البيت"},
	{"Rasool Allah", "رسول الله ﷺ"},
	{"Comp.(RA)", "من الصحابة"},
	{"Follower(Tabi')", "من التابعين"},
	{"Succ. (Taba' Tabi')", "من تابعي التابعين"},
	{"3rd Century AH", "من علماء القرن الثالث الهجري"},
	{"4th Century AH", "من علماء القرن الرابع الهجري"},
}

// ArabicGrade 把英文的学者等级映射为阿拉伯语；无法识别时原样返回。
func ArabicGrade(grade string) string {
	g := strings.TrimSpace(grade)
	for _, f := range gradeFamilies {
		if strings.HasPrefix(g, f.prefix) {
			return f.arabic
		}
	}
	return grade
}

// Blessing 返回等级对应的祈福语（卡片里跟在名字后面）；没有则为空。
func Blessing(arabicGrade string) string {
	switch arabicGrade {
	case "من الصحابة", "من التابعين":
		return "رضي الله عنه"
	case "من تابعي التابعين", "من علماء القرن الثالث الهجري", "من علماء القرن الرابع الهجري":
		return "رحمه الله"
	}
	return ""
}

// ToArabicNumerals 把 ASCII 数字替换为东阿拉伯数字（٠..٩）。
func ToArabicNumerals(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return '٠' + (r - '0')
		}
		return r
	}, s)
}
