package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
)

type memPutter struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	fail    string
}

func (m *memPutter) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if key == m.fail {
		return errors.New("拒绝写入")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return errors.New("大小不一致")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(b)
	m.types[key] = contentType
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}

func effFor(root string) config.EffectiveConfig {
	public := filepath.Join(root, "public")
	return config.EffectiveConfig{
		Root:      root,
		PublicDir: public,
		Export: config.ExportConfig{
			SearchIndexPath: filepath.Join(public, "search_index.json"),
			HadithsPath:     filepath.Join(public, "hadiths.json"),
		},
		OG:      config.OGConfig{OutDir: filepath.Join(public, "images", "og-images")},
		Publish: config.PublishConfig{Prefix: "site", Bucket: "b"},
	}
}

func TestObjectKeyAndContentType(t *testing.T) {
	if got := ObjectKey("/site/", "/images/a.png"); got != "site/images/a.png" {
		t.Fatalf("对象名不正确：%s", got)
	}
	if got := ObjectKey("", "hadiths.json"); got != "hadiths.json" {
		t.Fatalf("无前缀时对象名不正确：%s", got)
	}
	if ContentType("a.json") != "application/json" || ContentType("a.PNG") != "image/png" {
		t.Fatalf("内容类型不正确")
	}
	if ContentType("a.unknownext") != "application/octet-stream" {
		t.Fatalf("未知扩展名应为二进制")
	}
}

func TestRun_UploadsArtifacts(t *testing.T) {
	root := t.TempDir()
	eff := effFor(root)
	writeFile(t, eff.Export.SearchIndexPath, "[]")
	writeFile(t, filepath.Join(eff.OG.OutDir, "og-default.png"), "png")
	writeFile(t, filepath.Join(eff.OG.OutDir, "hadiths", "Sahih_Bukhari", "1", "1.png"), "png1")
	writeFile(t, filepath.Join(eff.OG.OutDir, "hadiths", ".1.png.tmp-9"), "tmp")

	m := &memPutter{objects: map[string]string{}, types: map[string]string{}}
	items := Run(context.Background(), eff, m, zerolog.Nop(), nil)
	if len(items) != 3 {
		t.Fatalf("期望 3 个文件（hadiths.json 不存在、临时文件跳过），实际 %+v", items)
	}

	var keys []string
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{
		"site/images/og-images/hadiths/Sahih_Bukhari/1/1.png",
		"site/images/og-images/og-default.png",
		"site/search_index.json",
	}
	if len(keys) != len(want) {
		t.Fatalf("对象不正确：%v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("对象不正确：%v", keys)
		}
	}
	if m.types["site/search_index.json"] != "application/json" {
		t.Fatalf("JSON 内容类型不正确：%v", m.types)
	}
	if items[0].Key != "public/search_index.json" || items[0].Output != "site/search_index.json" {
		t.Fatalf("条目不正确：%+v", items[0])
	}
}

func TestRun_PerFileFailure(t *testing.T) {
	root := t.TempDir()
	eff := effFor(root)
	writeFile(t, eff.Export.SearchIndexPath, "[]")
	writeFile(t, eff.Export.HadithsPath, "[]")

	m := &memPutter{objects: map[string]string{}, types: map[string]string{}, fail: "site/hadiths.json"}
	items := Run(context.Background(), eff, m, zerolog.Nop(), nil)
	if len(items) != 2 {
		t.Fatalf("期望 2 条结果：%+v", items)
	}
	if items[0].Status != domain.StatusProcessed || items[1].Status != domain.StatusFailed || items[1].ErrorCode != domain.ErrCodeUploadFailed {
		t.Fatalf("单个文件失败不应影响其他文件：%+v", items)
	}
}

func TestExecute_RequiresConfig(t *testing.T) {
	items := Execute(context.Background(), effFor(t.TempDir()), zerolog.Nop(), nil)
	if len(items) != 1 || items[0].ErrorCode != domain.ErrCodeConfigInvalid || items[0].Key != "" {
		t.Fatalf("配置不全应为 config_invalid：%+v", items)
	}
}
