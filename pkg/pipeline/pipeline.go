package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/transcriber"
	"github.com/z-wentao/ytscribe/pkg/translator"
	"github.com/z-wentao/ytscribe/pkg/youtube"
)

// CaptionSource 已有字幕来源，没有可用字幕时返回 false
type CaptionSource interface {
	FetchTranscript(ctx context.Context, ref models.VideoReference, preferredLang string) (*models.TranscriptResult, bool)
}

// SpeechTranscriber 下载音频并做语音识别
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, rawURL string, progress transcriber.Progress) (*models.TranscriptResult, error)
}

// TextTranslator 按需翻译
type TextTranslator interface {
	Translate(ctx context.Context, text, target, source string) (string, error)
	DetectLanguage(ctx context.Context, text string) string
	SupportedLanguages() []translator.Language
}

// Reporter 上报任务阶段和进度（0-100），不包含完成状态，完成由保存结果的一方设置
type Reporter func(status models.JobStatus, progress int)

// Pipeline 解析链接 → 字幕 → 语音识别（回退）→ 按需翻译
type Pipeline struct {
	captions   CaptionSource
	engine     SpeechTranscriber
	translator TextTranslator
	logger     *slog.Logger
}

// New 创建流水线
func New(captions CaptionSource, engine SpeechTranscriber, tr TextTranslator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{captions: captions, engine: engine, translator: tr, logger: logger}
}

// Resolve 解析视频链接
func (p *Pipeline) Resolve(rawURL string) (models.VideoReference, error) {
	return youtube.Resolve(rawURL)
}

// Transcribe 获取视频文本：优先使用已有字幕，没有时才下载音频做语音识别
func (p *Pipeline) Transcribe(ctx context.Context, rawURL, preferredLang string, report Reporter) (*models.TranscriptResult, error) {
	if report == nil {
		report = func(models.JobStatus, int) {}
	}

	ref, err := youtube.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With(slog.String("video_id", ref.String()))

	report(models.StatusCaptions, 5)
	if p.captions != nil {
		if result, ok := p.captions.FetchTranscript(ctx, ref, preferredLang); ok {
			logger.Info("✓ 使用已有字幕",
				slog.String("lang", result.SourceLanguage),
				slog.String("preview", preview(result.Text)))
			return result, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("📥 没有可用字幕，开始语音识别")
	report(models.StatusDownloading, 10)
	result, err := p.engine.Transcribe(ctx, ref.WatchURL(), func(done, total int) {
		if total <= 0 {
			return
		}
		report(models.StatusTranscribing, 20+75*done/total)
	})
	if err != nil {
		logger.Error("❌ 语音识别失败", slog.Any("error", err))
		return nil, err
	}

	logger.Info("✅ 语音识别完成",
		slog.String("lang", result.SourceLanguage),
		slog.String("preview", preview(result.Text)))
	return result, nil
}

// Translate 把文本翻译到目标语言；sourceLang 为空时自动检测
func (p *Pipeline) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	return p.translator.Translate(ctx, text, targetLang, sourceLang)
}

// DetectLanguage 检测文本语言，失败时返回 "en"
func (p *Pipeline) DetectLanguage(ctx context.Context, text string) string {
	return p.translator.DetectLanguage(ctx, text)
}

// SupportedLanguages 翻译支持的语言目录
func (p *Pipeline) SupportedLanguages() []translator.Language {
	return p.translator.SupportedLanguages()
}

func preview(text string) string {
	return strutil.TruncateWith(strings.Join(strings.Fields(text), " "), 80, "...")
}
