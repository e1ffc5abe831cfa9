package domain

import "strings"

// Language 是索引文件的语言选择器（闭合枚举）。
// Code 的小写形式会原样拼进索引 URL 的路径段。
type Language int

const (
	LanguageAll Language = iota
	LanguageKorean
	LanguageJapanese
	LanguageEnglish
	LanguageChinese
)

// Code 返回 URL 路径段使用的小写语言码。
func (l Language) Code() string {
	switch l {
	case LanguageAll:
		return "all"
	case LanguageKorean:
		return "korean"
	case LanguageJapanese:
		return "japanese"
	case LanguageEnglish:
		return "english"
	case LanguageChinese:
		return "chinese"
	default:
		return "all"
	}
}

// ParseLanguage 解析配置/CLI 传入的语言码。
// 输入做 trim + 小写归一；未知语言码返回 false。
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return LanguageAll, true
	case "korean":
		return LanguageKorean, true
	case "japanese":
		return LanguageJapanese, true
	case "english":
		return LanguageEnglish, true
	case "chinese":
		return LanguageChinese, true
	default:
		return LanguageAll, false
	}
}
