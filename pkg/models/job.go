package models

import "time"

type JobStatus string

const (
	StatusPending      JobStatus = "pending"
	StatusCaptions     JobStatus = "fetching_captions"
	StatusDownloading  JobStatus = "downloading"
	StatusTranscribing JobStatus = "transcribing"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
)

// TranscriptionJob 一次转录会话（仅保存在会话存储中，带过期时间）
type TranscriptionJob struct {
	JobID          string            `json:"job_id"`
	URL            string            `json:"url"`
	VideoID        VideoReference    `json:"video_id"`
	PreferredLang  string            `json:"preferred_lang,omitempty"`
	Status         JobStatus         `json:"status"`
	Progress       int               `json:"progress"`
	Result         string            `json:"result"`
	Origin         Origin            `json:"origin,omitempty"`
	SourceLanguage string            `json:"source_language,omitempty"`
	Cues           []Cue             `json:"cues,omitempty"`
	Translations   map[string]string `json:"translations,omitempty"` // 目标语言 -> 译文
	Error          string            `json:"error"`
	ErrorKind      string            `json:"error_kind,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// ApplyTranscript 把流水线结果写入任务
func (j *TranscriptionJob) ApplyTranscript(result *TranscriptResult) {
	j.Result = result.Text
	j.Origin = result.Origin
	j.SourceLanguage = result.SourceLanguage
	j.Cues = result.Cues
}

// Segment 音频片段
type Segment struct {
	Index    int     `json:"index"`     // 片段序号
	FilePath string  `json:"file_path"` // 片段文件路径
	Start    float64 `json:"start"`     // 开始时间（秒）
	End      float64 `json:"end"`       // 结束时间（秒）
}
