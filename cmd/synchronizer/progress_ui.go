package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Project-Madome/Synchronizer/internal/app/run"
	"github.com/Project-Madome/Synchronizer/internal/config"
	"github.com/Project-Madome/Synchronizer/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

var (
	okStyle   = color.New(color.FgGreen)
	failStyle = color.New(color.FgRed)
	dimStyle  = color.New(color.Faint)
)

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - OnItemDone 来自多个 goroutine，输出必须持锁
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time

	workers int
	total   int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] Synchronizer run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  language: %s\n", eff.Language.Code())
	if len(eff.IDs) > 0 {
		fmt.Fprintf(p.w, "  ids: %s（跳过索引抓取）\n", formatIDs(eff.IDs, 10))
	} else {
		fmt.Fprintf(p.w, "  page: %d\n", eff.Page)
		fmt.Fprintf(p.w, "  per_page: %d\n", eff.PerPage)
	}
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	if strings.TrimSpace(eff.GalleryBaseURL) != "" {
		fmt.Fprintf(p.w, "  gallery_base_url: %s\n", truncate(eff.GalleryBaseURL, 120))
	}
	if strings.TrimSpace(eff.IndexBaseURL) != "" {
		fmt.Fprintf(p.w, "  index_base_url: %s\n", truncate(eff.IndexBaseURL, 120))
	}
	fmt.Fprintln(p.w)

	p.mu.Unlock()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "index":
		fmt.Fprintf(p.w, "索引: ids=%d (%s)\n", intField(fields, "ids"), formatShortDuration(dur))
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.workers, p.total)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnItemDone(done, total int, id int32, res domain.GalleryResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %d %s %s: %s (%s)\n",
			done, total, id, failStyle.Sprint("FAIL"), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		characters, groups := 0, 0
		if res.Metadata != nil {
			characters = len(res.Metadata.Characters)
			groups = len(res.Metadata.Groups)
		}
		fmt.Fprintf(p.w, "[%d/%d] %d %s characters=%d groups=%d (%s)\n",
			done, total, id, okStyle.Sprint("OK"), characters, groups, formatShortDuration(dur),
		)
	}
}

// emitSummaryTTY 在交互终端上输出结果表格与摘要（stdout 是 TTY 时替代 JSON）。
func emitSummaryTTY(w io.Writer, rr domain.RunReport) {
	table := tablewriter.NewTable(w)
	table.Header([]string{"ID", "STATUS", "CHARACTERS", "GROUPS", "ERROR"})

	rows := make([][]string, 0, len(rr.Items))
	for _, it := range rr.Items {
		idText := fmt.Sprintf("%d", it.ID)
		if it.ID == 0 {
			idText = "-"
		}

		characters, groups := "", ""
		if it.Metadata != nil {
			characters = joinOrDash(it.Metadata.Characters)
			groups = joinOrDash(it.Metadata.Groups)
		}

		errText := ""
		if it.Status == domain.StatusFailed {
			errText = it.ErrorCode + ": " + truncate(it.ErrorMsg, 80)
		}

		rows = append(rows, []string{idText, it.Status, characters, groups, errText})
	}
	if err := table.Bulk(rows); err == nil {
		_ = table.Render()
	}

	line := fmt.Sprintf("完成：fetched=%d failed=%d", rr.Summary.Fetched, rr.Summary.Failed)
	if rr.Summary.Failed > 0 {
		fmt.Fprintln(w, failStyle.Sprint(line))
		return
	}
	fmt.Fprintln(w, okStyle.Sprint(line))
}

func joinOrDash(xs []string) string {
	if len(xs) == 0 {
		return dimStyle.Sprint("-")
	}
	return strings.Join(xs, ", ")
}

func formatIDs(ids []int32, max int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
		if len(parts) >= max && len(ids) > max {
			parts = append(parts, fmt.Sprintf("...（共 %d 个）", len(ids)))
			break
		}
	}
	return strings.Join(parts, ",")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}
