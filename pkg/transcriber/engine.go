package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/z-wentao/ytscribe/pkg/downloader"
	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/youtube"
)

// Progress 每完成一个窗口回调一次
type Progress func(done, total int)

// Engine AI 转录引擎：下载音轨 → 切分 → 逐个窗口识别 → 合并
// 一次请求内的所有步骤都是串行的
type Engine struct {
	downloader   downloader.Downloader
	recognizer   Recognizer
	splitter     Splitter
	tempDir      string
	languageHint string
	logger       *slog.Logger
}

// EngineOption 配置 Engine
type EngineOption func(*Engine)

// WithTempDir 设置下载产物的父目录，默认系统临时目录
func WithTempDir(dir string) EngineOption {
	return func(e *Engine) { e.tempDir = dir }
}

// WithLanguageHint 识别时传给模型的语言提示，默认自动检测
func WithLanguageHint(lang string) EngineOption {
	return func(e *Engine) { e.languageHint = lang }
}

// WithEngineLogger 设置日志
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine 创建转录引擎
func NewEngine(dl downloader.Downloader, rec Recognizer, splitter Splitter, opts ...EngineOption) *Engine {
	e := &Engine{
		downloader: dl,
		recognizer: rec,
		splitter:   splitter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process 返回转录文本和识别出的语言
func (e *Engine) Process(ctx context.Context, rawURL string) (string, string, error) {
	result, err := e.Transcribe(ctx, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	return result.Text, result.SourceLanguage, nil
}

// Transcribe 与 Process 相同，额外保留时间轴并上报进度
// 下载的音频和切出的窗口无论成功失败都会被删除
func (e *Engine) Transcribe(ctx context.Context, rawURL string, progress Progress) (*models.TranscriptResult, error) {
	rawURL = youtube.Normalize(rawURL)
	if !youtube.IsMediaHost(rawURL) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidReference, rawURL)
	}

	dir, err := os.MkdirTemp(e.tempDir, "ytscribe-*")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("⚠️ 清理临时目录失败", slog.String("dir", dir), slog.Any("error", err))
		}
	}()

	audioPath, err := e.downloader.Download(ctx, rawURL, dir)
	if err != nil {
		return nil, err
	}
	defer removeArtifact(e.logger, audioPath)

	segments, err := e.splitter.Split(ctx, audioPath, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: 音频切分失败: %v", models.ErrRecognition, err)
	}
	e.logger.Info("🎙️ 开始识别", slog.Int("windows", len(segments)))

	return e.recognizeWindows(ctx, segments, progress)
}

func (e *Engine) recognizeWindows(ctx context.Context, segments []models.Segment, progress Progress) (*models.TranscriptResult, error) {
	result := &models.TranscriptResult{Origin: models.OriginAI}
	texts := make([]string, 0, len(segments))
	succeeded := 0
	var lastErr error

	for i, seg := range segments {
		rec, err := e.recognizer.Recognize(ctx, seg.FilePath, e.languageHint)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// 模型加载失败时后续窗口也不可能成功
			if errors.Is(err, models.ErrRecognition) {
				return nil, err
			}
			lastErr = err
			e.logger.Warn("⚠️ 窗口识别失败，跳过", slog.Int("window", seg.Index), slog.Any("error", err))
		} else {
			succeeded++
			if succeeded == 1 {
				result.SourceLanguage = rec.Language
			}
			if text := strings.TrimSpace(rec.Text); text != "" {
				texts = append(texts, text)
			}
			for _, cue := range rec.Segments {
				result.Cues = append(result.Cues, models.Cue{
					Start: cue.Start + seg.Start,
					End:   cue.End + seg.Start,
					Text:  cue.Text,
				})
			}
			e.logger.Info("✅ 窗口识别完成",
				slog.Int("window", seg.Index),
				slog.Int("done", i+1),
				slog.Int("total", len(segments)),
				slog.Int("chars", len(rec.Text)))
		}
		if progress != nil {
			progress(i+1, len(segments))
		}
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: 所有窗口识别失败: %v", models.ErrRecognition, lastErr)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: 未识别出任何文字", models.ErrRecognition)
	}
	result.Text = strings.Join(texts, " ")
	return result, nil
}

func removeArtifact(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("⚠️ 删除音频文件失败", slog.String("path", path), slog.Any("error", err))
	}
}
