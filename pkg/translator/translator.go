package translator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/z-wentao/ytscribe/pkg/language"
	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/retry"
)

const (
	DefaultChunkSize  = 4999
	DefaultChunkDelay = 500 * time.Millisecond
	autoLanguage      = "auto"
)

// Capability 外部翻译服务，source 为 "auto" 时由服务自行检测
type Capability interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Detector 可选能力：检测文本语言
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// Translator 分块翻译引擎
type Translator struct {
	capability Capability
	chunkSize  int
	chunkDelay time.Duration
	retry      retry.Config
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option 配置 Translator
type Option func(*Translator)

// WithChunkSize 每块最多的字符数
func WithChunkSize(n int) Option {
	return func(t *Translator) { t.chunkSize = n }
}

// WithChunkDelay 相邻两块之间的固定间隔
func WithChunkDelay(d time.Duration) Option {
	return func(t *Translator) { t.chunkDelay = d }
}

// WithRetry 每块的重试策略
func WithRetry(c retry.Config) Option {
	return func(t *Translator) { t.retry = c }
}

// WithSleeper 替换所有等待（测试用）
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Translator) { t.sleep = fn }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// New 创建翻译引擎；默认每块 4999 字符、间隔 500ms、3 次指数退避（4s 起，最多 10s）
func New(capability Capability, opts ...Option) *Translator {
	t := &Translator{
		capability: capability,
		chunkSize:  DefaultChunkSize,
		chunkDelay: DefaultChunkDelay,
		retry: retry.Config{
			MaxAttempts: 3,
			InitialWait: 4 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		sleep:  retry.Sleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.chunkSize <= 0 {
		t.chunkSize = DefaultChunkSize
	}
	return t
}

// SupportedLanguages 返回语言目录
func (t *Translator) SupportedLanguages() []Language {
	return SupportedLanguages()
}

// Translate 把 text 翻译成 target；source 为空或 "auto" 表示自动检测
// 任意一块重试耗尽则整体失败，不返回部分结果
func (t *Translator) Translate(ctx context.Context, text, target, source string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", models.ErrInvalidInput
	}
	if !IsSupported(target) {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedLanguage, target)
	}
	target = catalogKey(target)
	source = language.Normalize(source)
	if source == "" {
		source = autoLanguage
	}

	if target == "en" && source == "en" {
		return text, nil
	}

	chunks := SplitChunks(text, t.chunkSize)
	logger := t.logger.With(slog.String("source", source), slog.String("target", target))
	logger.Info("🌐 开始翻译", slog.Int("chunks", len(chunks)), slog.Int("chars", len([]rune(text))))

	var limiter *rate.Limiter
	if len(chunks) > 1 && t.chunkDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(t.chunkDelay), 1)
	}

	capSource := source
	if source != autoLanguage {
		capSource = capabilityCode(source)
	}
	capTarget := capabilityCode(target)

	cfg := t.retry
	cfg.Sleep = t.sleep
	cfg.Name = "translate"

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if limiter != nil {
			if err := t.pace(ctx, limiter); err != nil {
				return "", err
			}
		}
		out, err := retry.Do(ctx, cfg, func(attempt int) (string, error) {
			return t.capability.Translate(ctx, chunk, capSource, capTarget)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			logger.Error("❌ 分块翻译失败", slog.Int("chunk", i+1), slog.Any("error", err))
			return "", fmt.Errorf("%w: 第 %d/%d 块: %v", models.ErrTranslation, i+1, len(chunks), err)
		}
		translated = append(translated, out)
		logger.Debug("分块翻译完成", slog.Int("chunk", i+1), slog.Int("total", len(chunks)))
	}

	logger.Info("✓ 翻译完成")
	return strings.Join(translated, " "), nil
}

// pace 第一块立即执行，之后每块至少间隔 chunkDelay
func (t *Translator) pace(ctx context.Context, limiter *rate.Limiter) error {
	r := limiter.Reserve()
	if !r.OK() {
		return nil
	}
	if d := r.Delay(); d > 0 {
		if err := t.sleep(ctx, d); err != nil {
			r.Cancel()
			return err
		}
	}
	return nil
}

// DetectLanguage 检测文本语言；服务不支持检测或检测失败时返回 "en"
func (t *Translator) DetectLanguage(ctx context.Context, text string) string {
	detector, ok := t.capability.(Detector)
	if !ok || strings.TrimSpace(text) == "" {
		return "en"
	}
	sample := SplitChunks(text, t.chunkSize)[0]
	lang, err := detector.Detect(ctx, sample)
	if err != nil || lang == "" {
		t.logger.Warn("⚠️ 语言检测失败，默认英语", slog.Any("error", err))
		return "en"
	}
	return language.Normalize(lang)
}

// SplitChunks 按字符（rune）位置切块，不考虑句子和单词边界
func SplitChunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
