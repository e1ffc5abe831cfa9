package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Project-Madome/Synchronizer/internal/config"
	"github.com/Project-Madome/Synchronizer/internal/domain"
	"github.com/Project-Madome/Synchronizer/internal/infra/httpx"
	"github.com/Project-Madome/Synchronizer/internal/parser"
	"github.com/Project-Madome/Synchronizer/internal/parser/gallery"
	"github.com/Project-Madome/Synchronizer/internal/parser/nozomi"
)

// Execute 执行一次 run（索引页 → 并发抓取各 gallery），并返回对外稳定的 RunReport。
// 单个 gallery 的失败降级为 item 级结果（一条失败不影响其他）；
// 只有索引抓取失败或配置无效会让本次 run 没有任何条目可处理。
func Execute(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Language:  eff.Language.Code(),
		Page:      eff.Page,
		PerPage:   eff.PerPage,
		StartedAt: started,
		Items:     make([]domain.GalleryResult, 0, eff.PerPage),
	}

	metaClient, err := httpx.NewMetaClient(eff.ProxyURL)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	ids := eff.IDs
	if len(ids) == 0 {
		indexStarted := time.Now()
		ids, err = fetchIndex(ctx, eff)
		if err != nil {
			code := domain.ErrCodeIndexFailed
			var de *parser.DecodeError
			if errors.As(err, &de) {
				code = domain.ErrCodeDecodeFailed
			}
			rr.Items = append(rr.Items, syntheticFailed(code, fmt.Sprintf("索引抓取失败：%v", err)))
			rr.FinishedAt = time.Now().UTC()
			rr.Finalize()
			return rr
		}
		if obs != nil {
			obs.OnPhaseDone("index", map[string]any{"ids": len(ids)}, time.Since(indexStarted))
		}
	}

	// 执行阶段：按 id 并发（有界），单个 id 内串行（Request → Parse）。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     workers,
			"total_items": len(ids),
		}, 0)
	}

	results := make([]domain.GalleryResult, len(ids))

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			oneStarted := time.Now()
			res := fetchOne(gctx, eff, id, metaClient)
			results[i] = res
			if obs != nil {
				obs.OnItemDone(int(done.Add(1)), len(ids), id, res, time.Since(oneStarted))
			}
			// 失败降级为 item 结果，从不向 errgroup 返回错误（避免连带取消其余条目）。
			return nil
		})
	}
	_ = g.Wait()

	rr.Items = append(rr.Items, results...)
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// fetchIndex 抓取并解码一页索引。
func fetchIndex(ctx context.Context, eff config.EffectiveConfig) ([]int32, error) {
	indexClient, err := httpx.NewIndexClient()
	if err != nil {
		return nil, err
	}

	p := nozomi.New(eff.Page, eff.PerPage, eff.Language, indexClient)
	p.BaseURL = eff.IndexBaseURL

	fetched, err := p.Request(ctx)
	if err != nil {
		return nil, &parser.Error{Parser: "nozomi", Stage: "request", Err: err}
	}
	ids, err := fetched.Parse()
	if err != nil {
		return nil, &parser.Error{Parser: "nozomi", Stage: "parse", Err: err}
	}
	return ids, nil
}

// fetchOne 驱动单个 gallery 走完 构造 → Request → Parse 的生命周期。
func fetchOne(ctx context.Context, eff config.EffectiveConfig, id int32, c *http.Client) domain.GalleryResult {
	item := domain.GalleryResult{
		ID:     id,
		Status: domain.StatusFetched, // 失败时覆盖
	}

	p := gallery.New(id, c)
	p.BaseURL = eff.GalleryBaseURL

	fetched, err := p.Request(ctx)
	if err != nil {
		fillParserError(&item, &parser.Error{Parser: "gallery", Stage: "request", Err: err})
		return item
	}

	book, err := fetched.Parse()
	if err != nil {
		fillParserError(&item, &parser.Error{Parser: "gallery", Stage: "parse", Err: err})
		return item
	}

	item.Metadata = &book
	return item
}

func syntheticFailed(code, msg string) domain.GalleryResult {
	return domain.GalleryResult{
		ID:        0,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

// fillParserError 把 parser 的类型化错误归类为对外 error_code，并生成可操作的 error_msg。
func fillParserError(item *domain.GalleryResult, err error) {
	item.Status = domain.StatusFailed

	var (
		re *parser.ResolutionError
		ne *parser.NetworkError
		se *parser.StructureError
		de *parser.DecodeError
		nf *parser.NotFetchedError
	)
	switch {
	case errors.As(err, &re):
		item.ErrorCode = domain.ErrCodeResolveFailed
		item.ErrorMsg = fmt.Sprintf("跳转页解析失败（该 id 可能不存在，或站点改掉了跳转页结构）：%v", re)
	case errors.As(err, &se):
		item.ErrorCode = domain.ErrCodeParseFailed
		item.ErrorMsg = fmt.Sprintf("解析失败（站点结构可能变化或返回了非详情页内容）：%v", se)
	case errors.As(err, &de):
		item.ErrorCode = domain.ErrCodeDecodeFailed
		item.ErrorMsg = de.Error()
	case errors.As(err, &ne):
		item.ErrorCode = domain.ErrCodeFetchFailed
		item.ErrorMsg = humanizeNetworkError(ne)
	case errors.As(err, &nf):
		item.ErrorCode = domain.ErrCodeFetchFailed
		item.ErrorMsg = nf.Error()
	default:
		item.ErrorCode = domain.ErrCodeFetchFailed
		item.ErrorMsg = err.Error()
	}
}

func humanizeNetworkError(ne *parser.NetworkError) string {
	switch ne.StatusCode {
	case 0:
		if errors.Is(ne.Err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(ne.Error()), "timeout") {
			return fmt.Sprintf("抓取超时：%s。建议检查网络/代理，或降低并发后重试。", ne.URL)
		}
		low := strings.ToLower(ne.Error())
		if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
			return fmt.Sprintf("连接失败（TLS/SSL）：%s。可在 synchronizer.json 配置 proxy.url 或切换 base_url。", ne.URL)
		}
		return ne.Error()
	case 403, 429:
		return fmt.Sprintf("返回 HTTP %d（可能触发反爬/限流）：%s。建议降低并发或配置 proxy.url。", ne.StatusCode, ne.URL)
	case 404:
		return fmt.Sprintf("返回 HTTP 404（该 id 可能不存在/已下架）：%s", ne.URL)
	default:
		return ne.Error()
	}
}
