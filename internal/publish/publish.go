// Package publish 把 public/ 下的生成物上传到对象存储。
package publish

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
	"github.com/John-Robertt/isnadprep/internal/infra/fsx"
)

const Stage = "publish"

const uploadWorkers = 4

// Putter 是上传目标的最小接口（测试中用内存实现替换）。
type Putter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// File 是一个待上传文件。Rel 是相对 public 目录的斜杠路径，也是对象名（不含前缀）。
type File struct {
	Path string
	Rel  string
}

// Files 列出需要发布的文件：两个 JSON 快照（存在才发布）与 og 目录下的全部文件。
// 以 '.' 开头的文件（原子写入的临时文件）跳过。
func Files(eff config.EffectiveConfig) ([]File, error) {
	var out []File
	for _, p := range []string{eff.Export.SearchIndexPath, eff.Export.HadithsPath} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, File{Path: p, Rel: fsx.Rel(eff.PublicDir, p)})
	}

	err := filepath.WalkDir(eff.OG.OutDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && p == eff.OG.OutDir {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		out = append(out, File{Path: p, Rel: fsx.Rel(eff.PublicDir, p)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ObjectKey 拼接前缀与相对路径。
func ObjectKey(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	rel = strings.TrimLeft(rel, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// ContentType 按扩展名推断；未知类型按二进制处理。
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".html":
		return "text/html; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Upload 并发上传 files；每个文件一条结果，顺序与 files 一致。
func Upload(ctx context.Context, p Putter, root, prefix string, files []File, hook domain.ItemHook) []domain.ItemResult {
	items := make([]domain.ItemResult, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadWorkers)
	for i, f := range files {
		g.Go(func() error {
			started := time.Now()
			key := fsx.Rel(root, f.Path)
			objKey := ObjectKey(prefix, f.Rel)
			if err := putFile(gctx, p, f.Path, objKey); err != nil {
				items[i] = domain.Failed(Stage, key, domain.ErrCodeUploadFailed, err.Error())
			} else {
				items[i] = domain.Processed(Stage, key, objKey)
			}
			hook.Call(int(done.Add(1)), len(files), items[i], time.Since(started))
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func putFile(ctx context.Context, p Putter, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	return p.Put(ctx, key, f, fi.Size(), ContentType(key))
}

// Execute 校验配置、建立 S3 客户端并上传。配置不全时返回一条 config_invalid。
func Execute(ctx context.Context, eff config.EffectiveConfig, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	if !eff.Publish.Enabled() {
		msg := "publish 需要 endpoint、bucket 与凭据（" + config.EnvS3AccessKey + " / " + config.EnvS3SecretKey + "）"
		log.Error().Msg(msg)
		return []domain.ItemResult{domain.Fatal(Stage, "", domain.ErrCodeConfigInvalid, msg)}
	}
	s, err := NewS3Store(eff.Publish)
	if err != nil {
		log.Error().Err(err).Msg("初始化对象存储失败")
		return []domain.ItemResult{domain.Fatal(Stage, "", domain.ErrCodeConfigInvalid, err.Error())}
	}
	return Run(ctx, eff, s, log, hook)
}

// Run 把 eff 对应的生成物上传到 p。
func Run(ctx context.Context, eff config.EffectiveConfig, p Putter, log zerolog.Logger, hook domain.ItemHook) []domain.ItemResult {
	files, err := Files(eff)
	if err != nil {
		log.Error().Err(err).Msg("列出待发布文件失败")
		return []domain.ItemResult{domain.Fatal(Stage, fsx.Rel(eff.Root, eff.PublicDir), domain.ErrCodeIOFailed, err.Error())}
	}
	items := Upload(ctx, p, eff.Root, eff.Publish.Prefix, files, hook)

	failed := 0
	for _, it := range items {
		if it.Status == domain.StatusFailed {
			failed++
			log.Warn().Str("file", it.Key).Str("error", it.ErrorMsg).Msg("上传失败")
		}
	}
	log.Info().Int("files", len(files)).Int("failed", failed).Str("bucket", eff.Publish.Bucket).Msg("发布完成")
	return items
}
