package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/z-wentao/ytscribe/pkg/language"
	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/retry"
)

// OpenAILoader 使用 OpenAI 音频转写接口，模型无需本地加载
type OpenAILoader struct {
	Client *openai.Client
	Retry  retry.Config
}

// NewOpenAILoader 创建 OpenAI 识别器加载器；baseURL 为空时使用官方地址
func NewOpenAILoader(apiKey, baseURL string) *OpenAILoader {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAILoader{
		Client: openai.NewClientWithConfig(cfg),
		Retry: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     8 * time.Second,
			Multiplier:  2,
			Retryable:   isRetryableOpenAI,
		},
	}
}

// Load 实现 ModelLoader
func (l *OpenAILoader) Load(_ context.Context, spec ModelSpec) (Recognizer, error) {
	if l.Client == nil {
		return nil, errors.New("OpenAI 客户端未配置")
	}
	model := spec.Variant
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIRecognizer{client: l.Client, model: model, retry: l.Retry}, nil
}

// OpenAIRecognizer OpenAI Whisper API 识别器
type OpenAIRecognizer struct {
	client *openai.Client
	model  string
	retry  retry.Config
}

// Recognize 上传音频并获取带时间戳的 verbose_json 结果
func (r *OpenAIRecognizer) Recognize(ctx context.Context, audioPath, languageHint string) (*Recognition, error) {
	req := openai.AudioRequest{
		Model:    r.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if languageHint != "" {
		req.Language = language.Base(languageHint)
	}

	cfg := r.retry
	cfg.Name = "openai-transcription"
	resp, err := retry.Do(ctx, cfg, func(int) (openai.AudioResponse, error) {
		return r.client.CreateTranscription(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("调用转写接口失败: %w", err)
	}

	rec := &Recognition{
		Text:     strings.TrimSpace(resp.Text),
		Language: language.FromName(resp.Language),
	}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		rec.Segments = append(rec.Segments, models.Cue{Start: seg.Start, End: seg.End, Text: text})
	}
	return rec, nil
}

func isRetryableOpenAI(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retry.IsRetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retry.IsRetryableStatus(reqErr.HTTPStatusCode)
	}
	return retry.IsTransient(err)
}
