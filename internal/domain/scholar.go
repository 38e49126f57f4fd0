package domain

import "strconv"

// Scholar 是抓取到的一行学者资料（scholars_data.csv 的一行）。
type Scholar struct {
	ID       int
	FullName string
	Parents  string
	Siblings string
	Spouses  string
	Children string
	// Sources 是 div#hideshow{ID} 的外层 HTML（已做 CSV 清洗）。
	Sources string
	// Kamal 是 div#kamal{ID} 的外层 HTML（Thadeeb-al-Kamal）。
	Kamal string
}

// ScholarCSVHeader 是 scholars_data.csv 的固定表头。
var ScholarCSVHeader = []string{"ID", "Full Name", "Parents", "Siblings", "Spouse(s)", "Children", "Sources", "Thadeeb-al-Kamal"}

// Record 按 ScholarCSVHeader 的列顺序输出。
func (s Scholar) Record() []string {
	return []string{
		strconv.Itoa(s.ID), s.FullName, s.Parents, s.Siblings, s.Spouses, s.Children, s.Sources, s.Kamal,
	}
}

// BookSource 是一条（书目出处, 引文内容）。
type BookSource struct {
	BookSource string `json:"book_source"`
	Content    string `json:"content"`
}

// ScholarSources 是 scholars_sources.json 中的一项。
type ScholarSources struct {
	ScholarID int64        `json:"scholar_id"`
	Name      string       `json:"name"`
	Sources   []BookSource `json:"sources"`
}
