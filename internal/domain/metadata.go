package domain

// FieldTag 枚举元数据的全部字段。每个字段在 MetadataBook 中恰好占一个槽位，
// 槽位缺省即“缺失”（不是空列表）。
//
// 约束：解析层只允许往对应槽位写入该 tag 的值；不允许跨槽位赋值。
type FieldTag int

const (
	TagID FieldTag = iota
	TagTitle
	TagArtists
	TagSeries
	TagCharacters
	TagGroups
	TagTags
	TagLanguage
	TagContentType
	TagCreatedAt
	TagThumbnailURL
)

// Label 返回站点详情页表格里该字段的行标签（精确匹配，不做大小写归一）。
// 站点改版导致标签漂移时，解析会以 StructureError 失败，而不是静默落空。
func (t FieldTag) Label() string {
	switch t {
	case TagID:
		return "ID"
	case TagTitle:
		return "Title"
	case TagArtists:
		return "Artists"
	case TagSeries:
		return "Series"
	case TagCharacters:
		return "Characters"
	case TagGroups:
		return "Groups"
	case TagTags:
		return "Tags"
	case TagLanguage:
		return "Language"
	case TagContentType:
		return "Type"
	case TagCreatedAt:
		return "Uploaded"
	case TagThumbnailURL:
		return "Thumbnail"
	default:
		return ""
	}
}

// MetadataBook 是一次 gallery 解析的聚合结果。
//
// 约束：
// - 指针/切片为 nil 表示“缺失”；解析层不允许产出长度为 0 的非 nil 列表
// - 构造后不再被其他组件修改（每次 Parse 产出一份新的）
// - 当前解析范围只覆盖 Characters 与 Groups，其余槽位保持缺失（已知限制）
type MetadataBook struct {
	ID    *int32  `json:"id,omitempty"`
	Title *string `json:"title,omitempty"`

	Artists    []string `json:"artists,omitempty"`
	Series     []string `json:"series,omitempty"`
	Characters []string `json:"characters,omitempty"`
	Groups     []string `json:"groups,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	Language     *string `json:"language,omitempty"`
	ContentType  *string `json:"content_type,omitempty"`
	CreatedAt    *string `json:"created_at,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}
