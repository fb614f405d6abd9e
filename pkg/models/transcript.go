package models

// VideoReference 从链接中解析出的视频 ID
type VideoReference string

func (v VideoReference) String() string { return string(v) }

// WatchURL 规范化的观看地址
func (v VideoReference) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(v)
}

// Origin 转录文本来源
type Origin string

const (
	OriginCaption Origin = "caption"
	OriginAI      Origin = "ai"
)

// Cue 带时间戳的一句文本（秒）
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptResult 流水线产出的转录结果
type TranscriptResult struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
	Origin         Origin `json:"origin"`
	Cues           []Cue  `json:"cues,omitempty"`
}
