package og

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="ar" dir="rtl">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>OG Images Index</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 1200px; margin: 0 auto; padding: 20px; }
        h1, h2 { color: #333; }
        .image-container { margin-bottom: 40px; }
        .image-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(350px, 1fr)); gap: 20px; }
        .image-card { border: 1px solid #ddd; padding: 10px; border-radius: 5px; }
        img { max-width: 100%; height: auto; }
        .image-caption { margin-top: 10px; font-size: 0.9em; color: #555; }
    </style>
</head>
<body>
    <h1>OG Images Preview</h1>
{{- range .}}
<div class="image-container">
<h2>{{.Title}}</h2>
<div class="image-grid">
{{- range .Images}}
    <div class="image-card">
        <img src="{{.Src}}" alt="OG Image">
        <div class="image-caption">{{.Name}}</div>
    </div>
{{- end}}
</div>
</div>
{{- end}}
</body>
</html>
`))

type indexImage struct {
	Src  string
	Name string
}

type indexSection struct {
	Title  string
	Images []indexImage
}

// IndexFile 是 QA 页面的文件名。
const IndexFile = "index.html"

// WriteIndex 在 outDir 下写出 index.html，每个分组最多列出 perKind 张图片。
// 图片地址是相对 publicDir 的站点绝对路径（/images/og-images/...）。
func WriteIndex(outDir, publicDir string, perKind int) error {
	var sections []indexSection
	for _, k := range Kinds {
		dir := filepath.Join(outDir, k.Dir)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		sec := indexSection{Title: k.Title}
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isImage(d.Name()) {
				return nil
			}
			if len(sec.Images) >= perKind {
				return fs.SkipAll
			}
			sec.Images = append(sec.Images, indexImage{Src: "/" + fsx.Rel(publicDir, p), Name: d.Name()})
			return nil
		})
		if err != nil && !errors.Is(err, fs.SkipAll) {
			return err
		}
		sections = append(sections, sec)
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, sections); err != nil {
		return err
	}
	return fsx.WriteFile(filepath.Join(outDir, IndexFile), buf.Bytes())
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
