package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/z-wentao/ytscribe/pkg/captions"
	"github.com/z-wentao/ytscribe/pkg/command"
	"github.com/z-wentao/ytscribe/pkg/config"
	"github.com/z-wentao/ytscribe/pkg/downloader"
	"github.com/z-wentao/ytscribe/pkg/logging"
	"github.com/z-wentao/ytscribe/pkg/retry"
	"github.com/z-wentao/ytscribe/pkg/transcriber"
	"github.com/z-wentao/ytscribe/pkg/translator"
)

// NewFromConfig 按配置组装完整流水线
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runner := command.Exec{}

	dl, err := downloader.NewYtDlp(cfg.Download.Options(), runner,
		downloader.WithLogger(logging.Component(logger, "downloader")))
	if err != nil {
		return nil, fmt.Errorf("创建下载器失败: %w", err)
	}

	model := newModel(cfg, runner, logging.Component(logger, "model"))
	splitter := transcriber.NewAudioSplitter(runner,
		cfg.Transcriber.LongAudioThreshold,
		cfg.Transcriber.WindowDuration,
		logging.Component(logger, "splitter"))
	engine := transcriber.NewEngine(dl, model, splitter,
		transcriber.WithTempDir(cfg.Transcriber.TempDir),
		transcriber.WithLanguageHint(cfg.Transcriber.LanguageHint),
		transcriber.WithEngineLogger(logging.Component(logger, "transcriber")))

	store := captions.NewYouTubeStore(
		&http.Client{Timeout: time.Duration(cfg.Captions.TimeoutSeconds) * time.Second},
		captions.WithAcceptLanguage(cfg.Captions.AcceptLanguage))
	fetcher := captions.NewFetcher(store, logging.Component(logger, "captions"))

	capability, err := newCapability(cfg)
	if err != nil {
		return nil, err
	}
	tr := translator.New(capability,
		translator.WithChunkSize(cfg.Translator.ChunkSize),
		translator.WithChunkDelay(time.Duration(cfg.Translator.ChunkDelayMs)*time.Millisecond),
		translator.WithRetry(retry.Config{
			MaxAttempts: cfg.Translator.MaxAttempts,
			InitialWait: time.Duration(cfg.Translator.InitialBackoffMs) * time.Millisecond,
			MaxWait:     time.Duration(cfg.Translator.MaxBackoffMs) * time.Millisecond,
			Multiplier:  2,
		}),
		translator.WithLogger(logging.Component(logger, "translator")))

	logger.Info("✓ 流水线已就绪",
		slog.String("recognizer", cfg.Transcriber.Backend),
		slog.String("translator", cfg.Translator.Backend))
	return New(fetcher, engine, tr, logging.Component(logger, "pipeline")), nil
}

func newModel(cfg *config.Config, runner command.Runner, logger *slog.Logger) *transcriber.LazyModel {
	if cfg.Transcriber.Backend == "openai" {
		loader := transcriber.NewOpenAILoader(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
		model := cfg.OpenAI.TranscriptionModel
		return transcriber.NewLazyModel(loader, model, model, func() bool { return false }, logger)
	}
	loader := &transcriber.WhisperCPPLoader{
		Binary:   cfg.Transcriber.Binary,
		ModelDir: cfg.Transcriber.ModelDir,
		Threads:  cfg.Transcriber.Threads,
		Runner:   runner,
	}
	return transcriber.NewLazyModel(loader,
		cfg.Transcriber.PreferredModel,
		cfg.Transcriber.FallbackModel,
		transcriber.DetectCUDA,
		logger)
}

func newCapability(cfg *config.Config) (translator.Capability, error) {
	switch cfg.Translator.Backend {
	case "google":
		return translator.NewGoogleTranslate(nil, cfg.Translator.Endpoint), nil
	case "llm":
		return translator.NewLLMTranslate(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel), nil
	default:
		return nil, fmt.Errorf("未知的翻译后端: %s", cfg.Translator.Backend)
	}
}
