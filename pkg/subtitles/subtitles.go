package subtitles

import (
	"fmt"
	"math"
	"strings"

	"github.com/z-wentao/ytscribe/pkg/models"
)

// Format 字幕格式
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat 解析格式名，默认 SRT
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	}
	return "", fmt.Errorf("不支持的字幕格式: %s", s)
}

// ContentType 返回 HTTP Content-Type
func (f Format) ContentType() string {
	if f == FormatVTT {
		return "text/vtt; charset=utf-8"
	}
	return "application/x-subrip; charset=utf-8"
}

// Render 按指定格式渲染字幕
func Render(f Format, cues []models.Cue) string {
	if f == FormatVTT {
		return RenderVTT(cues)
	}
	return RenderSRT(cues)
}

// RenderSRT 生成 SRT 字幕
//
//	1
//	00:00:00,000 --> 00:00:05,200
//	字幕文本
func RenderSRT(cues []models.Cue) string {
	var builder strings.Builder
	writeCues(&builder, cues, ',')
	return builder.String()
}

// RenderVTT 生成 WebVTT 字幕，文件必须以 "WEBVTT" 开头
func RenderVTT(cues []models.Cue) string {
	var builder strings.Builder
	builder.WriteString("WEBVTT\n\n")
	writeCues(&builder, cues, '.')
	return builder.String()
}

func writeCues(builder *strings.Builder, cues []models.Cue, sep byte) {
	index := 1
	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(builder, "%d\n%s --> %s\n%s\n\n",
			index, formatTime(cue.Start, sep), formatTime(cue.End, sep), text)
		index++
	}
}

// formatTime 65.5 → 00:01:05,500（VTT 用点号）
func formatTime(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	hours := total / 3_600_000
	minutes := total % 3_600_000 / 60_000
	secs := total % 60_000 / 1000
	millis := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, secs, sep, millis)
}
