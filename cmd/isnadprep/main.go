package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/isnadprep/internal/app/run"
	"github.com/John-Robertt/isnadprep/internal/config"
	"github.com/John-Robertt/isnadprep/internal/domain"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	if !run.IsCommand(args[0]) {
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if code := runCmd(args[0], args[1:]); code != 0 {
		os.Exit(code)
	}
}

func runCmd(command string, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printCommandUsage(os.Stdout, command)
			return 0
		}
	}

	ca, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printCommandUsage(os.Stderr, command)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca)
	if err != nil {
		emitReport(reportForConfigError(command, cwd, ca, err))
		return 1
	}

	log := newLogger(os.Stderr, eff.LogLevel)

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, command, eff, log, obs)
	emitReport(rr)
	if interactive {
		emitLocations(progressW, command, eff)
	}
	return exitCode(rr)
}

// exitCode：存在失败条目时为 1。未匹配的参考只是报告内容，不影响退出码。
func exitCode(rr domain.RunReport) int {
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func parseArgs(args []string) (config.CLIArgs, error) {
	ca := config.CLIArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, val, hasVal := strings.Cut(a, "=")
		if !strings.HasPrefix(a, "-") {
			if ca.Root != "" {
				return config.CLIArgs{}, fmt.Errorf("重复的 root：%q 与 %q", ca.Root, a)
			}
			ca.Root = a
			continue
		}

		switch name {
		case "--threshold", "--workers", "--from", "--to", "--config":
		default:
			return config.CLIArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if !hasVal {
			if i+1 >= len(args) {
				return config.CLIArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			val = args[i]
		}

		switch name {
		case "--threshold":
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || !(f > 0 && f < 100) {
				return config.CLIArgs{}, fmt.Errorf("--threshold 必须在 (0, 100) 之间，实际是 %q", val)
			}
			ca.Threshold, ca.ThresholdSet = f, true
		case "--workers":
			n, err := positiveInt(name, val)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.Workers, ca.WorkersSet = n, true
		case "--from":
			n, err := positiveInt(name, val)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.IDFrom, ca.IDFromSet = n, true
		case "--to":
			n, err := positiveInt(name, val)
			if err != nil {
				return config.CLIArgs{}, err
			}
			ca.IDTo, ca.IDToSet = n, true
		case "--config":
			if strings.TrimSpace(val) == "" {
				return config.CLIArgs{}, fmt.Errorf("--config 不能为空")
			}
			ca.ConfigPath = val
		}
	}

	if ca.IDFromSet && ca.IDToSet && ca.IDFrom > ca.IDTo {
		return config.CLIArgs{}, fmt.Errorf("--from(%d) 不能大于 --to(%d)", ca.IDFrom, ca.IDTo)
	}
	return ca, nil
}

func positiveInt(name, val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s 必须是正整数，实际是 %q", name, val)
	}
	return n, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  isnadprep <command> [root] [参数]

命令：
  scrape    抓取学者页面，写出 data/scholars_data.csv
  sources   从学者 CSV 提取出处，写出 data/scholars_sources.json
  match     把各来源的解释条目匹配到参考数据集
  builddb   构建 SQLite 数据库
  export    导出搜索索引与 hadiths.json
  og        生成分享卡片图片
  publish   上传产物到对象存储
  all       依次执行 sources、match、builddb、export、og

使用 "isnadprep <command> --help" 查看详细说明。
`)
}

func printCommandUsage(w io.Writer, command string) {
	fmt.Fprintf(w, `用法：
  isnadprep %s [root] [参数]

参数：
  --config     配置文件路径（默认 <root>/isnadprep.yaml）
  --threshold  匹配阈值，取值 (0, 100)（默认 80，仅 match/all）
  --workers    并发数（match、sources、og）
  --from       起始学者 ID（仅 scrape）
  --to         结束学者 ID（仅 scrape）
  -h, --help   显示帮助
`, command)
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	out := w
	if f, ok := w.(*os.File); ok && isTTY(f) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：processed=%d skipped=%d failed=%d unmatched=%d",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Unmatched,
	)
}

func emitReport(rr domain.RunReport) {
	writeReport(os.Stdout, os.Stderr, rr, isTTY(os.Stdout))
}

func writeReport(stdout, stderr io.Writer, rr domain.RunReport, tty bool) {
	if tty {
		fmt.Fprintln(stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Key
			if key == "" {
				key = "<" + orDefault(it.Stage, "config") + ">"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		if rr.Summary.Unmatched > 0 {
			fmt.Fprintf(stderr, "未匹配的参考 %d 条，详见各来源的 unmatched_hadiths.csv\n", rr.Summary.Unmatched)
		}
		return
	}

	// stdout 非 TTY：stdout 只输出一个 RunReport JSON，摘要走 stderr。
	_ = json.NewEncoder(stdout).Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func reportForConfigError(command, cwd string, ca config.CLIArgs, err error) domain.RunReport {
	root := ca.Root
	if root == "" {
		root = cwd
	} else if !filepath.IsAbs(root) {
		root = filepath.Join(cwd, root)
	}
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	now := time.Now().UTC()
	rr := domain.RunReport{
		Command:    command,
		Root:       filepath.Clean(root),
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.ItemResult{domain.Fatal("", "", code, err.Error())},
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 仅重定向 stderr 时 stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, command string, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	switch command {
	case "scrape":
		fmt.Fprintf(w, "out: %s\n", eff.Scrape.Output)
	case "sources":
		fmt.Fprintf(w, "out: %s\n", eff.Extract.Output)
	case "match":
		fmt.Fprintf(w, "out: %s\n", eff.DataDir)
	case "builddb":
		fmt.Fprintf(w, "db: %s\n", eff.DBPath)
	case "publish":
		fmt.Fprintf(w, "bucket: %s/%s\n", eff.Publish.Bucket, eff.Publish.Prefix)
	default:
		fmt.Fprintf(w, "db: %s\n", eff.DBPath)
		fmt.Fprintf(w, "public: %s\n", eff.PublicDir)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
