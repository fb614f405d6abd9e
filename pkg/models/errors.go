package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidReference    = errors.New("无法识别的 YouTube 链接")
	ErrDownload            = errors.New("音频下载失败")
	ErrBotDetected         = errors.New("YouTube 将请求识别为机器人")
	ErrRecognition         = errors.New("语音识别失败")
	ErrInvalidInput        = errors.New("输入文本为空")
	ErrUnsupportedLanguage = errors.New("不支持的目标语言")
	ErrTranslation         = errors.New("翻译失败")
)

// DownloadFailure 下载失败的细分类型
type DownloadFailure string

const (
	FailureEmptyResponse DownloadFailure = "empty_response"
	FailureMissingOutput DownloadFailure = "missing_output"
	FailureBotDetected   DownloadFailure = "bot_detected"
	FailureNetwork       DownloadFailure = "network"
)

// DownloadError 重试耗尽后返回给调用方的下载错误
type DownloadError struct {
	Kind     DownloadFailure
	Attempts int
	Err      error
}

func (e *DownloadError) Error() string {
	if e.Kind == FailureBotDetected {
		return fmt.Sprintf("%v（已尝试 %d 次）：请提供 cookies 文件、配置代理，或换一个视频再试", ErrBotDetected, e.Attempts)
	}
	return fmt.Sprintf("%v（%s，已尝试 %d 次）: %v", ErrDownload, e.Kind, e.Attempts, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrDownload) 对所有下载错误成立，
// errors.Is(err, ErrBotDetected) 只对机器人检测成立
func (e *DownloadError) Is(target error) bool {
	switch target {
	case ErrDownload:
		return true
	case ErrBotDetected:
		return e.Kind == FailureBotDetected
	}
	return false
}

// ErrorKind 把错误映射为稳定的字符串，供 API 返回
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrBotDetected):
		return "bot_detected"
	case errors.Is(err, ErrDownload):
		return "download_error"
	case errors.Is(err, ErrRecognition):
		return "recognition_error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnsupportedLanguage):
		return "unsupported_language"
	case errors.Is(err, ErrTranslation):
		return "translation_error"
	default:
		return "internal_error"
	}
}
