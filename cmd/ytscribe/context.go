package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/z-wentao/ytscribe/pkg/config"
	"github.com/z-wentao/ytscribe/pkg/logging"
	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/pipeline"
	"github.com/z-wentao/ytscribe/pkg/translator"
)

// service 命令行用到的流水线能力
type service interface {
	Resolve(rawURL string) (models.VideoReference, error)
	Transcribe(ctx context.Context, rawURL, preferredLang string, report pipeline.Reporter) (*models.TranscriptResult, error)
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)
	DetectLanguage(ctx context.Context, text string) string
	SupportedLanguages() []translator.Language
}

// commandContext 延迟加载配置和流水线，只有真正需要的命令才会初始化
type commandContext struct {
	configPath string
	verbose    bool
	stderr     io.Writer

	build func(cfg *config.Config, logger *slog.Logger) (service, error)

	once sync.Once
	svc  service
	err  error
}

func newCommandContext() *commandContext {
	return &commandContext{
		stderr: os.Stderr,
		build: func(cfg *config.Config, logger *slog.Logger) (service, error) {
			return pipeline.NewFromConfig(cfg, logger)
		},
	}
}

func (c *commandContext) service() (service, error) {
	c.once.Do(func() {
		path := c.configPath
		if path == "" {
			path = config.Path()
		}
		cfg, err := config.LoadConfig(path)
		if err != nil {
			c.err = fmt.Errorf("加载配置失败: %w", err)
			return
		}
		logCfg := cfg.Log
		if c.verbose {
			logCfg.Level = "debug"
		} else if logCfg.Level == "info" {
			logCfg.Level = "warn"
		}
		logger, err := logging.New(logCfg, c.stderr)
		if err != nil {
			c.err = err
			return
		}
		c.svc, c.err = c.build(cfg, logger)
	})
	return c.svc, c.err
}
