package textx

import "testing"

func TestArabicSource(t *testing.T) {
	if got := ArabicSource("Sahih Bukhari"); got != "صحيح البخاري" {
		t.Fatalf("实际 %q", got)
	}
	if got := ArabicSource("Unknown Book"); got != "Unknown Book" {
		t.Fatalf("未知书名应原样返回，实际 %q", got)
	}
}

func TestArabicGrade(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Comp.(RA) [1st Generation]", "من الصحابة"},
		{"Follower(Tabi') [3rd Generation]", "من التابعين"},
		{"Succ. (Taba' Tabi') [9th generation] [Shafi'ee]", "من تابعي التابعين"},
		{"3rd Century AH [Shafi'ee]", "من علماء القرن الثالث الهجري"},
		{"Prophet's Relative [Non-Muslim]", "من أقارب النبي (غير مسلم)"},
		{"Prophet's Relative", "من أهل البيت"},
		{"something else", "something else"},
	}
	for _, c := range cases {
		if got := ArabicGrade(c.in); got != c.want {
			t.Fatalf("ArabicGrade(%q) 期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestBlessing(t *testing.T) {
	if Blessing("من الصحابة") != "رضي الله عنه" {
		t.Fatalf("صحابي 应返回 رضي الله عنه")
	}
	if Blessing("من تابعي التابعين") != "رحمه الله" {
		t.Fatalf("应返回 رحمه الله")
	}
	if Blessing("رسول الله ﷺ") != "" {
		t.Fatalf("应返回空串")
	}
}

func TestToArabicNumerals(t *testing.T) {
	if got := ToArabicNumerals("باب 105"); got != "باب ١٠٥" {
		t.Fatalf("实际 %q", got)
	}
}
