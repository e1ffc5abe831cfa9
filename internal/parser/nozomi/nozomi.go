package nozomi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/Project-Madome/Synchronizer/internal/domain"
	"github.com/Project-Madome/Synchronizer/internal/parser"
)

// Nozomi 抓取远端二进制索引的一页，解码出 id 列表。
//
// 索引是一个按“新者在前”排列的定长记录文件：每条记录 4 字节，
// 首字节保留（观测值恒为 0），后 3 字节按大端组成 id。
//
// 约束：
// - URL 纯计算，不发网络请求
// - Request 用 Range 头只取一页的字节区间；索引尾部返回不足量不算错误
// - 索引 host 直连可达，不需要代理（与 gallery 页不同）
type Nozomi struct {
	// Page 从 1 开始计数。
	Page int
	// PerPage 是一页的记录条数。
	PerPage int
	// Language 选择抓取哪份索引文件。
	Language domain.Language
	// BaseURL 允许指定可用域名，为空时使用默认的 https://ltn.hitomi.la。
	BaseURL string
	// Client 由调用方注入（见 infra/httpx.NewIndexClient）。
	Client *http.Client

	payload []byte
	fetched bool
}

var _ parser.Parser[[]byte, []int32] = (*Nozomi)(nil)

func New(page, perPage int, language domain.Language, c *http.Client) *Nozomi {
	return &Nozomi{Page: page, PerPage: perPage, Language: language, Client: c}
}

func (n *Nozomi) baseURL() string {
	u := strings.TrimSpace(n.BaseURL)
	if u == "" {
		return "https://ltn.hitomi.la"
	}
	return strings.TrimRight(u, "/")
}

func (n *Nozomi) URL(ctx context.Context) (string, error) {
	return fmt.Sprintf("%s/index-%s.nozomi", n.baseURL(), n.Language.Code()), nil
}

// Request 按页码计算字节区间并抓取，返回一个 Fetched 态的新实例。
// 响应可能比请求的区间短（索引尾部），payload 原样存储，截断交给 Parse 处理。
func (n *Nozomi) Request(ctx context.Context) (parser.Parser[[]byte, []int32], error) {
	if n.Client == nil {
		return nil, errors.New("http client 不能为空")
	}

	u, err := n.URL(ctx)
	if err != nil {
		return nil, err
	}

	start := (n.Page - 1) * n.PerPage * 4
	end := start + n.PerPage*4 - 1

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := n.Client.Do(req)
	if err != nil {
		return nil, &parser.NetworkError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	// 416：请求区间完全落在索引之外。按契约等价于“空页”，不是错误。
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		next := *n
		next.payload = nil
		next.fetched = true
		return &next, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &parser.NetworkError{URL: u, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &parser.NetworkError{URL: u, Err: err}
	}

	next := *n
	next.payload = b
	next.fetched = true
	return &next, nil
}

func (n *Nozomi) RawPayload() ([]byte, error) {
	if !n.fetched {
		return nil, &parser.NotFetchedError{Parser: "nozomi"}
	}
	return n.payload, nil
}

// Parse 解码全部完整记录并按 id 降序返回（索引“新者在前”）。
// 末尾不足 4 字节的记录终止循环，结果只是比请求的页短，不报错。
func (n *Nozomi) Parse() ([]int32, error) {
	payload, err := n.RawPayload()
	if err != nil {
		return nil, err
	}

	ids := make([]int32, 0, len(payload)/4)
	for i := 0; i+4 <= len(payload); i += 4 {
		var rec [4]byte
		copy(rec[:], payload[i:i+4])

		id, err := decodeRecord(rec, i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(a, b int) bool { return ids[a] > ids[b] })
	return ids, nil
}

// decodeRecord 把一条 4 字节记录转成 id：首字节忽略，
// rec[1] 是最高有效字节，rec[3] 是最低有效字节。
func decodeRecord(rec [4]byte, offset int) (int32, error) {
	v := int64(rec[1])<<16 | int64(rec[2])<<8 | int64(rec[3])
	if v > math.MaxInt32 {
		return 0, &parser.DecodeError{Offset: offset, Value: v}
	}
	return int32(v), nil
}
