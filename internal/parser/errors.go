package parser

import (
	"fmt"
	"strings"
)

// NetworkError 表示一次请求在传输层失败，或站点返回了非 2xx 状态码。
// 不在核心内重试，直接上抛由调用方决定 retry/skip/abort。
type NetworkError struct {
	URL        string
	StatusCode int // 0 表示未拿到响应（传输层失败）
	Err        error
}

func (e *NetworkError) Error() string {
	if e == nil {
		return "network error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d：%s", e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("请求失败：%s：%v", e.URL, e.Err)
	}
	return fmt.Sprintf("请求失败：%s", e.URL)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResolutionError 表示跳转页里找不到指向正文的锚点（body > a）。
// 通常意味着该 id 不存在，或站点改掉了跳转页结构。
type ResolutionError struct {
	URL string
}

func (e *ResolutionError) Error() string {
	if e == nil || strings.TrimSpace(e.URL) == "" {
		return "跳转页中未找到正文链接"
	}
	return fmt.Sprintf("跳转页中未找到正文链接：%s", e.URL)
}

// StructureError 表示页面缺少预期的结构元素（表格/行/单元格/列表）。
// 这是前置条件被破坏（站点改版），不是可恢复的空结果。
type StructureError struct {
	Selector string // 缺失元素的选择器或行标签
	Msg      string
}

func (e *StructureError) Error() string {
	if e == nil {
		return "页面结构不符合预期"
	}
	if strings.TrimSpace(e.Msg) != "" {
		return fmt.Sprintf("页面结构不符合预期（%s）：%s", e.Selector, e.Msg)
	}
	return fmt.Sprintf("页面结构不符合预期：缺少 %s", e.Selector)
}

// NotFetchedError 表示在 Request 成功之前访问了 payload（调用顺序错误）。
type NotFetchedError struct {
	Parser string // "gallery" / "nozomi"
}

func (e *NotFetchedError) Error() string {
	if e == nil || strings.TrimSpace(e.Parser) == "" {
		return "payload 尚未抓取：必须先调用 Request"
	}
	return fmt.Sprintf("%s payload 尚未抓取：必须先调用 Request", e.Parser)
}

// DecodeError 表示二进制记录无法转换为合法的 id（数值越界）。
// 合法数据不会触发：每条记录只有 3 个有效字节。
type DecodeError struct {
	Offset int
	Value  int64
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "记录解码失败"
	}
	return fmt.Sprintf("记录解码失败：offset=%d value=%d 超出 int32 范围", e.Offset, e.Value)
}

// Error 是带阶段标记的可追溯错误（url/request/parse）。
// 上层据此把失败归类为 resolve_failed / fetch_failed / parse_failed。
type Error struct {
	Parser string // "gallery" / "nozomi"
	Stage  string // "url" / "request" / "parse"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parser=%s stage=%s: %v", e.Parser, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
