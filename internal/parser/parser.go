package parser

import "context"

// Parser 把“定位 → 抓取 → 解析”三段生命周期固化为统一接口；站点差异被限制在
// 各具体实现（gallery/nozomi）内部，核心流程只依赖该接口与稳定的解码结果。
//
// 状态机：Unfetched →（Request 成功）→ Fetched。没有独立的 Parsed 终态：
// Parse 可以在 Fetched 上反复调用，且必须是纯函数（不修改 payload，无副作用）。
//
// 约束：
// - URL 允许发起网络请求（gallery 需要先解析跳转页），nozomi 则纯计算
// - Request 不修改接收者：返回一个携带 payload 的新实例（Fetched 态）
// - RawPayload/Parse 在 Unfetched 态调用必须返回 *NotFetchedError
// - 不做缓存、不做重试、不做限速（重试属于 transport 层，见 infra/httpx）
type Parser[Payload, Decoded any] interface {
	URL(ctx context.Context) (string, error)
	Request(ctx context.Context) (Parser[Payload, Decoded], error)
	RawPayload() (Payload, error)
	Parse() (Decoded, error)
}
