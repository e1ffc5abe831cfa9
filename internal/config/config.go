package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Project-Madome/Synchronizer/internal/domain"
)

const (
	// ErrCodeNotFound 保留给“配置文件必选但不存在”的场景；当前配置文件总是可选。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// DefaultLanguage 是语言的最终默认值（当 CLI 与配置文件都未指定时）。
	DefaultLanguage = "all"
	// DefaultPerPage 是一页记录条数的内置默认值。
	DefaultPerPage = 25
	// DefaultConcurrency 是 gallery 抓取并发的内置默认值。
	DefaultConcurrency = 4
)

// CLIArgs 只包含 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --per-page 必须能覆盖配置文件的 per_page。
type CLIArgs struct {
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

// FileConfig 对应 synchronizer.json 的解析结构。
type FileConfig struct {
	Language       string       `json:"language"`
	Page           int          `json:"page"`
	PerPage        int          `json:"per_page"`
	Concurrency    int          `json:"concurrency"`
	Proxy          *ProxyConfig `json:"proxy"`
	GalleryBaseURL string       `json:"gallery_base_url"`
	IndexBaseURL   string       `json:"index_base_url"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，
// 不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Language domain.Language
	Page     int
	PerPage  int

	// IDs 非空时跳过索引抓取，直接处理给定的 gallery。
	IDs []int32

	Concurrency int
	ProxyURL    string

	// GalleryBaseURL / IndexBaseURL 允许在默认域名不可达时切换（可选）。
	// 高级能力，仅通过 synchronizer.json 配置，不暴露 CLI 参数。
	GalleryBaseURL string
	IndexBaseURL   string
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

// LoadEffective 读取 <cwd>/synchronizer.json（可选），然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：
// - language/page/per_page/concurrency：CLI > config > 默认
// - ids：仅由 CLI 控制
// - proxy/base_url：仅由 config 控制（CLI 不暴露）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, "synchronizer.json")
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	return merge(cli, fc, cfgPath)
}

func merge(cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	// language：CLI > config > 默认
	langCode := DefaultLanguage
	if cli.LanguageSet {
		langCode = cli.Language
	} else if strings.TrimSpace(fc.Language) != "" {
		langCode = fc.Language
	}
	lang, ok := domain.ParseLanguage(langCode)
	if !ok {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("language 不支持：%q", langCode)}
	}

	// page：CLI > config > 默认 1；必须是正数（页码从 1 开始）。
	page := 1
	if cli.PageSet {
		page = cli.Page
	} else if fc.Page != 0 {
		page = fc.Page
	}
	if page < 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("page 必须 >= 1，实际是 %d", page)}
	}

	// per_page：CLI > config > 默认；必须是正数。
	perPage := DefaultPerPage
	if cli.PerPageSet {
		perPage = cli.PerPage
	} else if fc.PerPage != 0 {
		perPage = fc.PerPage
	}
	if perPage < 1 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("per_page 必须 >= 1，实际是 %d", perPage)}
	}

	// concurrency：CLI > config > 默认；范围 [1, 32]，超出截断。
	concurrency := DefaultConcurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	} else if fc.Concurrency != 0 {
		concurrency = fc.Concurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("proxy.url 无效：%w", err)}
		}
	}

	galleryBaseURL, err := validateBaseURL("gallery_base_url", fc.GalleryBaseURL, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}
	indexBaseURL, err := validateBaseURL("index_base_url", fc.IndexBaseURL, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}

	for _, id := range cli.IDs {
		if id < 1 {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("id 必须是正整数，实际是 %d", id)}
		}
	}

	return EffectiveConfig{
		Language:       lang,
		Page:           page,
		PerPage:        perPage,
		IDs:            append([]int32(nil), cli.IDs...),
		Concurrency:    concurrency,
		ProxyURL:       proxyURL,
		GalleryBaseURL: galleryBaseURL,
		IndexBaseURL:   indexBaseURL,
	}, nil
}

func validateBaseURL(field, raw, cfgPath string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("%s 无效：%q", field, raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("%s 必须是 http/https：%q", field, raw)}
	}
	return raw, nil
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
