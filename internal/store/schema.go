package store

// schemaDDL 建表与读优化索引。hadith_chains 通过 (source, chapter_no, hadith_no) 引用 hadiths 的唯一约束。
const schemaDDL = `
CREATE TABLE hadiths (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    hadith_id INTEGER,
    source TEXT,
    chapter_no INTEGER,
    hadith_no TEXT,
    chapter TEXT,
    text_ar TEXT,
    text_en TEXT,
    explanation TEXT,
    UNIQUE(source, chapter_no, hadith_no)
);

CREATE TABLE rawis (
    scholar_indx INTEGER PRIMARY KEY,
    name TEXT,
    full_name TEXT,
    grade TEXT,
    parents TEXT,
    birth_date_hijri INTEGER,
    birth_date_gregorian INTEGER,
    death_date_hijri INTEGER,
    death_date_gregorian INTEGER,
    death_place TEXT
);

CREATE TABLE hadith_chains (
    source TEXT,
    chapter_no INTEGER,
    hadith_no TEXT,
    scholar_indx INTEGER,
    position INTEGER,
    FOREIGN KEY(source, chapter_no, hadith_no) REFERENCES hadiths(source, chapter_no, hadith_no),
    FOREIGN KEY(scholar_indx) REFERENCES rawis(scholar_indx),
    PRIMARY KEY(source, chapter_no, hadith_no, scholar_indx)
);

CREATE TABLE sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    scholar_indx INTEGER,
    book_source TEXT,
    content TEXT,
    FOREIGN KEY(scholar_indx) REFERENCES rawis(scholar_indx)
);

CREATE INDEX idx_hadiths_hadith_id ON hadiths(hadith_id);
CREATE INDEX idx_hadiths_source_chapter ON hadiths(source, chapter_no);
CREATE INDEX idx_hadiths_text_ar ON hadiths(text_ar);
CREATE INDEX idx_hadiths_text_en ON hadiths(text_en);

CREATE INDEX idx_rawis_name ON rawis(name);
CREATE INDEX idx_rawis_full_name ON rawis(full_name);
CREATE INDEX idx_rawis_grade ON rawis(grade);
CREATE INDEX idx_rawis_death_date ON rawis(death_date_hijri, death_date_gregorian);

CREATE INDEX idx_chains_scholar_pos ON hadith_chains(scholar_indx, position);
CREATE INDEX idx_chains_source_scholar ON hadith_chains(source, scholar_indx);
CREATE INDEX idx_chains_scholar_chapter ON hadith_chains(scholar_indx, chapter_no);

CREATE INDEX idx_sources_scholar ON sources(scholar_indx);
`
