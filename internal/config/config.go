package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示通过 --config 显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是 root 下默认的配置文件名（可选）。
const FileName = "isnadprep.yaml"

const (
	DefaultThreshold     = 80.0
	DefaultBaseURL       = "https://muslimscholars.info/manage.php?submit=scholar&ID="
	DefaultIDFrom        = 2
	DefaultIDTo          = 40023
	DefaultDelay         = time.Second
	DefaultExtractWorker = 4
	DefaultSamplePerKind = 50
	DefaultRegion        = "us-east-1"

	maxWorkers = 32
)

const (
	EnvS3AccessKey = "ISNADPREP_S3_ACCESS_KEY"
	EnvS3SecretKey = "ISNADPREP_S3_SECRET_KEY"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息，
// 以便 --threshold=80 这类与默认值相同的参数仍能覆盖配置文件。
type CLIArgs struct {
	Root       string
	ConfigPath string

	Threshold    float64
	ThresholdSet bool

	Workers    int
	WorkersSet bool

	IDFrom    int
	IDFromSet bool
	IDTo      int
	IDToSet   bool
}

// FileConfig 对应 isnadprep.yaml 的解析结构。指针字段用于区分“未写”与“写了零值”。
type FileConfig struct {
	DataDir   string         `yaml:"data_dir"`
	PublicDir string         `yaml:"public_dir"`
	DBPath    string         `yaml:"db_path"`
	LogLevel  string         `yaml:"log_level"`
	Sources   []SourceConfig `yaml:"sources"`

	Match struct {
		Threshold *float64 `yaml:"threshold"`
		Workers   int      `yaml:"workers"`
	} `yaml:"match"`

	Scrape struct {
		BaseURL  string `yaml:"base_url"`
		IDFrom   int    `yaml:"id_from"`
		IDTo     int    `yaml:"id_to"`
		DelayMS  *int   `yaml:"delay_ms"`
		Retries  int    `yaml:"retries"`
		ProxyURL string `yaml:"proxy_url"`
		Output   string `yaml:"output"`
	} `yaml:"scrape"`

	Extract struct {
		Workers int    `yaml:"workers"`
		Output  string `yaml:"output"`
	} `yaml:"extract"`

	Export struct {
		Sources []string `yaml:"sources"`
	} `yaml:"export"`

	OG struct {
		Sources       []string `yaml:"sources"`
		Workers       int      `yaml:"workers"`
		FontRegular   string   `yaml:"font_regular"`
		FontBold      string   `yaml:"font_bold"`
		Logo          string   `yaml:"logo"`
		SamplePerKind int      `yaml:"sample_per_kind"`
	} `yaml:"og"`

	Publish struct {
		Endpoint string `yaml:"endpoint"`
		Bucket   string `yaml:"bucket"`
		Region   string `yaml:"region"`
		Prefix   string `yaml:"prefix"`
		UseSSL   *bool  `yaml:"use_ssl"`
	} `yaml:"publish"`
}

// SourceConfig 把数据目录名（data/<folder>/）映射到 hadiths_dataset.csv 中的 source 取值。
type SourceConfig struct {
	Folder string `yaml:"folder"`
	Name   string `yaml:"name"`
}

// EffectiveConfig 是合并并规范化后的最终配置；所有路径均为绝对路径。
type EffectiveConfig struct {
	Root       string
	ConfigPath string

	DataDir   string
	PublicDir string
	DBPath    string
	LogLevel  zerolog.Level
	Sources   []SourceConfig

	Match   MatchConfig
	Scrape  ScrapeConfig
	Extract ExtractConfig
	Export  ExportConfig
	OG      OGConfig
	Publish PublishConfig
}

type MatchConfig struct {
	Threshold float64
	Workers   int
}

type ScrapeConfig struct {
	BaseURL  string
	IDFrom   int
	IDTo     int
	Delay    time.Duration
	Retries  int
	ProxyURL string
	Output   string
	CacheDir string
}

type ExtractConfig struct {
	Workers int
	Input   string
	Output  string
}

type ExportConfig struct {
	Sources         []string
	SearchIndexPath string
	HadithsPath     string
}

type OGConfig struct {
	Sources       []string
	Workers       int
	FontRegular   string
	FontBold      string
	Logo          string
	OutDir        string
	SamplePerKind int
}

type PublishConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// Enabled 表示 publish 所需字段是否齐全。
func (p PublishConfig) Enabled() bool {
	return p.Endpoint != "" && p.Bucket != "" && p.AccessKey != "" && p.SecretKey != ""
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) root：CLI root > cwd
// 2) 配置文件：CLI --config（必须存在）> <root>/isnadprep.yaml（可选）
// 3) 凭据：进程环境变量 > <root>/.env
//
// 覆盖优先级：CLI > 配置文件 > 内置默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	root := cwdAbs
	if strings.TrimSpace(cli.Root) != "" {
		root = absCleanFrom(cwdAbs, cli.Root)
	}

	cfgPath := filepath.Join(root, FileName)
	explicit := strings.TrimSpace(cli.ConfigPath) != ""
	if explicit {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if explicit && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	env, err := readDotEnv(filepath.Join(root, ".env"))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: filepath.Join(root, ".env"), Err: err}
	}

	eff, err := merge(root, cli, fc, env)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if exists {
		eff.ConfigPath = cfgPath
	}
	return eff, nil
}

func merge(root string, cli CLIArgs, fc FileConfig, env map[string]string) (EffectiveConfig, error) {
	eff := EffectiveConfig{Root: root}

	eff.DataDir = absCleanFrom(root, orDefault(fc.DataDir, "data"))
	eff.PublicDir = absCleanFrom(root, orDefault(fc.PublicDir, "public"))
	eff.DBPath = absCleanFrom(root, orDefault(fc.DBPath, filepath.Join("data", "sqlite.db")))

	lvl, err := zerolog.ParseLevel(strings.ToLower(orDefault(fc.LogLevel, "info")))
	if err != nil {
		return EffectiveConfig{}, fmt.Errorf("log_level 无效：%w", err)
	}
	eff.LogLevel = lvl

	sources, err := normalizeSources(fc.Sources)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.Sources = sources

	// match.threshold：CLI > config > 默认 80；必须落在 (0, 100)。
	threshold := DefaultThreshold
	if cli.ThresholdSet {
		threshold = cli.Threshold
	} else if fc.Match.Threshold != nil {
		threshold = *fc.Match.Threshold
	}
	if !(threshold > 0 && threshold < 100) {
		return EffectiveConfig{}, fmt.Errorf("match.threshold 必须在 (0, 100) 之间，实际是 %v", threshold)
	}
	eff.Match = MatchConfig{
		Threshold: threshold,
		Workers:   pickWorkers(cli, fc.Match.Workers, runtime.NumCPU()),
	}

	sc, err := mergeScrape(root, cli, fc)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.Scrape = sc

	eff.Extract = ExtractConfig{
		Workers: pickWorkers(cli, fc.Extract.Workers, DefaultExtractWorker),
		Input:   sc.Output,
		Output:  absCleanFrom(root, orDefault(fc.Extract.Output, filepath.Join("data", "scholars_sources.json"))),
	}

	exportSources := cleanList(fc.Export.Sources)
	if len(exportSources) == 0 {
		for _, s := range eff.Sources {
			exportSources = append(exportSources, s.Name)
		}
	}
	eff.Export = ExportConfig{
		Sources:         exportSources,
		SearchIndexPath: filepath.Join(eff.PublicDir, "search_index.json"),
		HadithsPath:     filepath.Join(eff.PublicDir, "hadiths.json"),
	}

	ogSources := cleanList(fc.OG.Sources)
	if len(ogSources) == 0 {
		ogSources = []string{"Sahih Bukhari"}
	}
	sample := fc.OG.SamplePerKind
	if sample <= 0 {
		sample = DefaultSamplePerKind
	}
	eff.OG = OGConfig{
		Sources:       ogSources,
		Workers:       pickWorkers(cli, fc.OG.Workers, runtime.NumCPU()),
		FontRegular:   absCleanFrom(root, orDefault(fc.OG.FontRegular, filepath.Join("scripts", "fonts", "NotoNaskhArabic-Regular.ttf"))),
		FontBold:      absCleanFrom(root, orDefault(fc.OG.FontBold, filepath.Join("scripts", "fonts", "NotoNaskhArabic-Bold.ttf"))),
		Logo:          absCleanFrom(root, orDefault(fc.OG.Logo, filepath.Join("public", "logo.png"))),
		OutDir:        filepath.Join(eff.PublicDir, "images", "og-images"),
		SamplePerKind: sample,
	}

	useSSL := true
	if fc.Publish.UseSSL != nil {
		useSSL = *fc.Publish.UseSSL
	}
	eff.Publish = PublishConfig{
		Endpoint:  strings.TrimSpace(fc.Publish.Endpoint),
		Bucket:    strings.TrimSpace(fc.Publish.Bucket),
		Region:    orDefault(fc.Publish.Region, DefaultRegion),
		Prefix:    strings.Trim(strings.TrimSpace(fc.Publish.Prefix), "/"),
		UseSSL:    useSSL,
		AccessKey: firstNonEmpty(os.Getenv(EnvS3AccessKey), env[EnvS3AccessKey]),
		SecretKey: firstNonEmpty(os.Getenv(EnvS3SecretKey), env[EnvS3SecretKey]),
	}

	return eff, nil
}

func mergeScrape(root string, cli CLIArgs, fc FileConfig) (ScrapeConfig, error) {
	baseURL := orDefault(fc.Scrape.BaseURL, DefaultBaseURL)
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ScrapeConfig{}, fmt.Errorf("scrape.base_url 无效：%q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ScrapeConfig{}, fmt.Errorf("scrape.base_url 必须是 http/https：%q", baseURL)
	}

	from := DefaultIDFrom
	if fc.Scrape.IDFrom != 0 {
		from = fc.Scrape.IDFrom
	}
	if cli.IDFromSet {
		from = cli.IDFrom
	}
	to := DefaultIDTo
	if fc.Scrape.IDTo != 0 {
		to = fc.Scrape.IDTo
	}
	if cli.IDToSet {
		to = cli.IDTo
	}
	if from < 1 || to < from {
		return ScrapeConfig{}, fmt.Errorf("scrape ID 区间无效：[%d, %d]", from, to)
	}

	delay := DefaultDelay
	if fc.Scrape.DelayMS != nil {
		if *fc.Scrape.DelayMS < 0 {
			return ScrapeConfig{}, fmt.Errorf("scrape.delay_ms 不能为负数")
		}
		delay = time.Duration(*fc.Scrape.DelayMS) * time.Millisecond
	}

	retries := fc.Scrape.Retries
	if retries < 0 {
		retries = 0
	}

	proxyURL := strings.TrimSpace(fc.Scrape.ProxyURL)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return ScrapeConfig{}, fmt.Errorf("scrape.proxy_url 无效：%w", err)
		}
	}

	return ScrapeConfig{
		BaseURL:  baseURL,
		IDFrom:   from,
		IDTo:     to,
		Delay:    delay,
		Retries:  retries,
		ProxyURL: proxyURL,
		Output:   absCleanFrom(root, orDefault(fc.Scrape.Output, filepath.Join("data", "scholars_data.csv"))),
		CacheDir: filepath.Join(root, "cache", "scholars"),
	}, nil
}

func normalizeSources(in []SourceConfig) ([]SourceConfig, error) {
	if len(in) == 0 {
		return []SourceConfig{
			{Folder: "bukhari", Name: "Sahih Bukhari"},
			{Folder: "muslim", Name: "Sahih Muslim"},
		}, nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]SourceConfig, 0, len(in))
	for _, s := range in {
		folder := strings.TrimSpace(s.Folder)
		name := strings.TrimSpace(s.Name)
		if folder == "" || name == "" {
			return nil, fmt.Errorf("sources 的 folder/name 不能为空：%+v", s)
		}
		if strings.ContainsAny(folder, `/\`) || folder == "." || folder == ".." {
			return nil, fmt.Errorf("sources.folder 只能是单层目录名：%q", folder)
		}
		if _, ok := seen[folder]; ok {
			return nil, fmt.Errorf("重复的 sources.folder：%q", folder)
		}
		seen[folder] = struct{}{}
		out = append(out, SourceConfig{Folder: folder, Name: name})
	}
	return out, nil
}

// pickWorkers：CLI --workers > 配置 > def；范围截断到 [1, 32]。
func pickWorkers(cli CLIArgs, fromFile, def int) int {
	n := def
	if fromFile != 0 {
		n = fromFile
	}
	if cli.WorkersSet {
		n = cli.Workers
	}
	return ClampWorkers(n)
}

// ClampWorkers 把并发度截断到 [1, 32]。
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxWorkers {
		return maxWorkers
	}
	return n
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// readDotEnv 读取 .env；不存在返回空表。不修改进程环境变量。
func readDotEnv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}
