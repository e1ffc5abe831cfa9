package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Project-Madome/Synchronizer/internal/app/run"
	"github.com/Project-Madome/Synchronizer/internal/config"
	"github.com/Project-Madome/Synchronizer/internal/domain"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Language:       ra.Language,
		LanguageSet:    ra.LanguageSet,
		Page:           ra.Page,
		PageSet:        ra.PageSet,
		PerPage:        ra.PerPage,
		PerPageSet:     ra.PerPageSet,
		Concurrency:    ra.Concurrency,
		ConcurrencySet: ra.ConcurrencySet,
		IDs:            ra.IDs,
	})
	if err != nil {
		rr := reportForConfigError(ra, err)
		emitReport(rr)
		return 1
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(context.Background(), eff, obs)

	emitReport(rr)
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Language    string
	LanguageSet bool

	Page    int
	PageSet bool

	PerPage    int
	PerPageSet bool

	Concurrency    int
	ConcurrencySet bool

	IDs []int32
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	// value 同时支持 "--flag value" 与 "--flag=value" 两种写法。
	value := func(i *int, raw, name string) (string, error) {
		if strings.HasPrefix(raw, name+"=") {
			return strings.TrimPrefix(raw, name+"="), nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--language" || strings.HasPrefix(a, "--language="):
			v, err := value(&i, a, "--language")
			if err != nil {
				return runArgs{}, err
			}
			if _, ok := domain.ParseLanguage(v); !ok {
				return runArgs{}, fmt.Errorf("--language 不支持：%q（可用：all/korean/japanese/english/chinese）", v)
			}
			ra.Language = v
			ra.LanguageSet = true
		case a == "--page" || strings.HasPrefix(a, "--page="):
			v, err := value(&i, a, "--page")
			if err != nil {
				return runArgs{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return runArgs{}, fmt.Errorf("--page 必须是 >= 1 的整数，实际是 %q", v)
			}
			ra.Page = n
			ra.PageSet = true
		case a == "--per-page" || strings.HasPrefix(a, "--per-page="):
			v, err := value(&i, a, "--per-page")
			if err != nil {
				return runArgs{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return runArgs{}, fmt.Errorf("--per-page 必须是 >= 1 的整数，实际是 %q", v)
			}
			ra.PerPage = n
			ra.PerPageSet = true
		case a == "--concurrency" || strings.HasPrefix(a, "--concurrency="):
			v, err := value(&i, a, "--concurrency")
			if err != nil {
				return runArgs{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return runArgs{}, fmt.Errorf("--concurrency 必须是 >= 1 的整数，实际是 %q", v)
			}
			ra.Concurrency = n
			ra.ConcurrencySet = true
		case a == "--ids" || strings.HasPrefix(a, "--ids="):
			v, err := value(&i, a, "--ids")
			if err != nil {
				return runArgs{}, err
			}
			ids, err := parseIDs(v)
			if err != nil {
				return runArgs{}, err
			}
			ra.IDs = ids
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			return runArgs{}, fmt.Errorf("多余的参数 %q", a)
		}
	}

	return ra, nil
}

func parseIDs(v string) ([]int32, error) {
	parts := strings.Split(v, ",")
	ids := make([]int32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("--ids 必须是逗号分隔的正整数，实际包含 %q", p)
		}
		ids = append(ids, int32(n))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("--ids 不能为空")
	}
	return ids, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  synchronizer run [--language L] [--page N] [--per-page N] [--ids 1,2,3] [--concurrency N]

命令：
  run    抓取一页索引并同步各 gallery 的元数据

使用 "synchronizer run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  synchronizer run [--language L] [--page N] [--per-page N] [--ids 1,2,3] [--concurrency N]

参数：
  --language     索引语言：all|korean|japanese|english|chinese（未指定则读配置文件；最终默认 all）
  --page         索引页码，从 1 开始（默认 1）
  --per-page     一页的记录条数（默认 25）
  --ids          逗号分隔的 gallery id；指定后跳过索引抓取
  --concurrency  gallery 抓取并发（默认 4，范围 [1,32]）
  -h, --help     显示帮助

配置文件（可选）：<cwd>/synchronizer.json，支持 language/page/per_page/concurrency/
proxy.url/gallery_base_url/index_base_url；CLI 参数覆盖配置文件。
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		emitSummaryTTY(os.Stdout, rr)
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：fetched=%d failed=%d\n", rr.Summary.Fetched, rr.Summary.Failed)
}

func reportForConfigError(ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Language:   ra.Language,
		Page:       ra.Page,
		PerPage:    ra.PerPage,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.GalleryResult{{
			ID:        0,
			Status:    domain.StatusFailed,
			ErrorCode: configErrorCode(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func configErrorCode(err error) string {
	if c := config.Code(err); c != "" {
		return c
	}
	return domain.ErrCodeConfigInvalid
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
