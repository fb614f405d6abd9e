package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/strutil"
	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/z-wentao/ytscribe/pkg/retry"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslate 调用 Google 翻译公开接口（client=gtx）
type GoogleTranslate struct {
	client   *http.Client
	endpoint string
}

// NewGoogleTranslate 创建翻译服务；endpoint 为空时使用公开地址
func NewGoogleTranslate(client *http.Client, endpoint string) *GoogleTranslate {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = googleEndpoint
	}
	return &GoogleTranslate{client: client, endpoint: endpoint}
}

// Translate 实现 Capability
func (g *GoogleTranslate) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := g.call(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	translated, _, err := parseGoogleResponse(body)
	return translated, err
}

// Detect 实现 Detector，复用翻译接口返回的源语言
func (g *GoogleTranslate) Detect(ctx context.Context, text string) (string, error) {
	body, err := g.call(ctx, text, autoLanguage, "en")
	if err != nil {
		return "", err
	}
	_, detected, err := parseGoogleResponse(body)
	if err != nil {
		return "", err
	}
	if detected == "" {
		return "", errors.New("响应中没有检测到的语言")
	}
	return detected, nil
}

func (g *GoogleTranslate) call(ctx context.Context, text, source, target string) ([]byte, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")

	form := url.Values{}
	form.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?"+params.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("User-Agent", stealth.RandomUserAgent())

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求翻译服务失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("读取翻译结果失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if retry.IsRetryableStatus(resp.StatusCode) {
			return nil, &retry.StatusError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("翻译服务返回错误 (状态码 %d): %s", resp.StatusCode, strutil.TruncateWith(string(data), 200, "..."))
	}
	return data, nil
}

// parseGoogleResponse 响应形如 [[["译文","原文",...],...],null,"en",...]
func parseGoogleResponse(body []byte) (string, string, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", "", fmt.Errorf("解析翻译结果失败: %w", err)
	}
	if len(raw) == 0 {
		return "", "", errors.New("翻译结果为空")
	}

	var builder strings.Builder
	sentences, _ := raw[0].([]any)
	for _, s := range sentences {
		parts, ok := s.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if piece, ok := parts[0].(string); ok {
			builder.WriteString(piece)
		}
	}

	var detected string
	if len(raw) > 2 {
		detected, _ = raw[2].(string)
	}
	if builder.Len() == 0 {
		return "", detected, errors.New("翻译结果为空")
	}
	return builder.String(), detected, nil
}
