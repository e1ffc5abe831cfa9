package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/Project-Madome/Synchronizer/internal/domain"
	"github.com/Project-Madome/Synchronizer/internal/parser"
)

// Gallery 按 id 抓取并解析单个 gallery 的元数据页。
//
// 约束：
// - URL 需要一次网络往返：站点先返回跳转页，正文地址在其 body > a 的 href 里
// - 解析范围只覆盖 Characters 与 Groups，其余字段保持缺失（已知限制，不要“顺手补全”）
// - 不做缓存/重试/限速（由 transport 层统一控制）
type Gallery struct {
	// ID 是正整数的作品 id。
	ID int32
	// BaseURL 允许指定可用域名，为空时使用默认的 https://hitomi.la。
	BaseURL string
	// Client 由调用方注入（见 infra/httpx.NewMetaClient）。
	Client *http.Client

	payload string
	fetched bool
}

var _ parser.Parser[string, domain.MetadataBook] = (*Gallery)(nil)

func New(id int32, c *http.Client) *Gallery {
	return &Gallery{ID: id, Client: c}
}

func (g *Gallery) baseURL() string {
	u := strings.TrimSpace(g.BaseURL)
	if u == "" {
		return "https://hitomi.la"
	}
	return strings.TrimRight(u, "/")
}

// URL 请求跳转页并从中解析出正文地址。
// 跳转页结构：body 下恰好一个 <a href="...">（link to the content）。
func (g *Gallery) URL(ctx context.Context) (string, error) {
	redirectURL := fmt.Sprintf("%s/galleries/%d.html", g.baseURL(), g.ID)

	body, err := fetchURL(ctx, g.Client, redirectURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}

	href, ok := doc.Find("body > a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", &parser.ResolutionError{URL: redirectURL}
	}
	return resolveURL(g.baseURL()+"/", href), nil
}

// resolveURL 把跳转页里的 href 归一为绝对地址（站点偶尔会输出相对/缺协议的链接）。
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

// Request 抓取正文 HTML，返回一个 Fetched 态的新实例；接收者保持不变。
// 不校验 payload 的形状（结构问题留给 Parse 报 StructureError）。
func (g *Gallery) Request(ctx context.Context) (parser.Parser[string, domain.MetadataBook], error) {
	contentURL, err := g.URL(ctx)
	if err != nil {
		return nil, err
	}

	body, err := fetchURL(ctx, g.Client, contentURL)
	if err != nil {
		return nil, err
	}

	next := *g
	next.payload = string(body)
	next.fetched = true
	return &next, nil
}

func (g *Gallery) RawPayload() (string, error) {
	if !g.fetched {
		return "", &parser.NotFetchedError{Parser: "gallery"}
	}
	return g.payload, nil
}

// Parse 解析存储的 HTML，产出 MetadataBook。幂等：可在同一实例上反复调用。
func (g *Gallery) Parse() (domain.MetadataBook, error) {
	payload, err := g.RawPayload()
	if err != nil {
		return domain.MetadataBook{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload))
	if err != nil {
		return domain.MetadataBook{}, err
	}

	charactersCell, err := findValueCell(doc, domain.TagCharacters.Label())
	if err != nil {
		return domain.MetadataBook{}, err
	}
	characters, err := parseCharacters(charactersCell)
	if err != nil {
		return domain.MetadataBook{}, err
	}

	groupsCell, err := findValueCell(doc, domain.TagGroups.Label())
	if err != nil {
		return domain.MetadataBook{}, err
	}
	groups, err := parseGroups(groupsCell)
	if err != nil {
		return domain.MetadataBook{}, err
	}

	return domain.MetadataBook{
		Characters: characters,
		Groups:     groups,
	}, nil
}

// findValueCell 在 .gallery-info > table 中定位行标签等于 label 的行，
// 返回其第二个 td（取值区域）。标签匹配是精确比较，不做归一化。
func findValueCell(doc *goquery.Document, label string) (*goquery.Selection, error) {
	table := doc.Find(".gallery-info > table").First()
	if table.Length() == 0 {
		return nil, &parser.StructureError{Selector: ".gallery-info > table"}
	}

	var (
		cell      *goquery.Selection
		structErr error
	)
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		tds := row.Find("td")
		if tds.Length() == 0 {
			return true
		}
		if firstText(tds.First()) != label {
			return true
		}
		if tds.Length() < 2 {
			structErr = &parser.StructureError{Selector: "td", Msg: fmt.Sprintf("行 %q 缺少取值单元格", label)}
			return false
		}
		cell = tds.Eq(1)
		return false
	})
	if structErr != nil {
		return nil, structErr
	}
	if cell == nil {
		return nil, &parser.StructureError{Selector: "tr", Msg: fmt.Sprintf("未找到行标签 %q", label)}
	}
	return cell, nil
}

// parseCharacters 提取角色列表；空列表视为缺失（站点对空 Characters 渲染空列表而非哨兵）。
func parseCharacters(cell *goquery.Selection) ([]string, error) {
	list, err := parseMultiple(cell)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

// parseGroups 先检查 "N/A" 哨兵（站点对空 Groups 渲染哨兵而非空列表），再提取列表。
// 与 parseCharacters 的不对称是站点渲染行为，不要擅自统一两条路径。
func parseGroups(cell *goquery.Selection) ([]string, error) {
	if isNothing(cell) {
		return nil, nil
	}
	return parseMultiple(cell)
}

// parseMultiple 提取取值区域 ul 下每个 li 的文本（保持列表顺序，不排序）。
// 取值区域没有 ul 视为结构破坏。
func parseMultiple(cell *goquery.Selection) ([]string, error) {
	ul := cell.Find("ul").First()
	if ul.Length() == 0 {
		return nil, &parser.StructureError{Selector: "ul", Msg: "取值区域缺少列表"}
	}

	var out []string
	ul.Find("li").Each(func(_ int, li *goquery.Selection) {
		out = append(out, strings.TrimSpace(li.Text()))
	})
	return out, nil
}

// isNothing 判断取值区域是否为 "N/A" 哨兵。
// 只看第一个文本节点：含 ul 的区域首个文本节点是空白或列表项文本，不会误判。
func isNothing(cell *goquery.Selection) bool {
	return strings.TrimSpace(firstText(cell)) == "N/A"
}

// firstText 深度优先返回选区首节点下第一个文本节点的内容；没有则返回空串。
func firstText(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}
	var walk func(n *html.Node) (string, bool)
	walk = func(n *html.Node) (string, bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				return c.Data, true
			}
			if t, ok := walk(c); ok {
				return t, true
			}
		}
		return "", false
	}
	t, _ := walk(s.Nodes[0])
	return t
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, &parser.NetworkError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &parser.NetworkError{URL: u, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &parser.NetworkError{URL: u, Err: err}
	}
	return b, nil
}
