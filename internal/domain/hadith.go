package domain

// Candidate 是外部解释数据集中的一条（开放数据的 id + 原文 + 解释）。不可变。
type Candidate struct {
	ID          string
	Text        string
	Explanation string
}

// Reference 是规范数据集中的一条圣训。匹配过程中只会被“移出未匹配池”，不会被修改。
type Reference struct {
	ID       string
	HadithNo string
	TextAr   string
	Source   string
	Chapter  string
}

// Match 是一次被接受的匹配：候选 id -> 规范 id（以及展示用的 hadith_no）。
type Match struct {
	CandidateID string
	ReferenceID string
	HadithNo    string
	Score       float64
}

// Hadith 对应 hadiths 表的一行。
type Hadith struct {
	HadithID    int64
	Source      string
	ChapterNo   int64
	HadithNo    string
	Chapter     string
	TextAr      string
	TextEn      string
	Explanation *string

	// ChainIndx 是原始数据里逗号分隔的学者编号串，只在建库时使用。
	ChainIndx string
}

// ChainLink 是传述链中的一环：某条圣训第 Position 位的学者。
type ChainLink struct {
	Source      string
	ChapterNo   int64
	HadithNo    string
	ScholarIndx int64
	Position    int
}

// Rawi 对应 rawis 表的一行；日期为空时为 nil。
type Rawi struct {
	ScholarIndx        int64
	Name               string
	FullName           string
	Grade              string
	Parents            string
	BirthDateHijri     *int16
	BirthDateGregorian *int16
	DeathDateHijri     *int16
	DeathDateGregorian *int16
	DeathPlace         string
}
