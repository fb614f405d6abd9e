package captions

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/retry"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	playerMarker     = "ytInitialPlayerResponse = "
	maxWatchPageSize = 8 << 20
	maxTimedTextSize = 4 << 20
)

// YouTubeStore 通过观看页中的 ytInitialPlayerResponse 读取字幕轨
type YouTubeStore struct {
	client         *http.Client
	baseURL        string
	acceptLanguage string
	retry          retry.Config
	userAgent      func() string
}

// StoreOption 配置 YouTubeStore
type StoreOption func(*YouTubeStore)

// WithBaseURL 替换 https://www.youtube.com（测试用）
func WithBaseURL(base string) StoreOption {
	return func(s *YouTubeStore) { s.baseURL = strings.TrimRight(base, "/") }
}

// WithRetry 设置 HTTP 重试策略
func WithRetry(c retry.Config) StoreOption {
	return func(s *YouTubeStore) { s.retry = c }
}

// WithUserAgent 固定 User-Agent，默认每次请求随机挑选
func WithUserAgent(ua string) StoreOption {
	return func(s *YouTubeStore) { s.userAgent = func() string { return ua } }
}

// WithAcceptLanguage 设置 Accept-Language 请求头
func WithAcceptLanguage(v string) StoreOption {
	return func(s *YouTubeStore) { s.acceptLanguage = v }
}

// NewYouTubeStore 创建 YouTube 字幕存储
func NewYouTubeStore(client *http.Client, opts ...StoreOption) *YouTubeStore {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	s := &YouTubeStore{
		client:         client,
		baseURL:        defaultBaseURL,
		acceptLanguage: "en-US,en;q=0.5",
		retry:          retry.Default,
		userAgent:      stealth.RandomUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.Name = "captions"
	return s
}

type playerResponse struct {
	Captions *struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Translatable bool   `json:"isTranslatable"`
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

type timedText struct {
	Lines []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

// ListTracks 实现 Store
func (s *YouTubeStore) ListTracks(ctx context.Context, videoID models.VideoReference) ([]Track, error) {
	body, err := s.get(ctx, s.baseURL+"/watch?v="+url.QueryEscape(videoID.String())+"&hl=en", maxWatchPageSize)
	if err != nil {
		return nil, fmt.Errorf("获取观看页失败: %w", err)
	}

	player, err := extractPlayerResponse(body)
	if err != nil {
		return nil, err
	}
	if player.Captions == nil {
		return nil, nil
	}

	var tracks []Track
	for _, t := range player.Captions.Renderer.CaptionTracks {
		if t.BaseURL == "" || needsPoToken(t.BaseURL) {
			continue
		}
		tracks = append(tracks, &youtubeTrack{store: s, info: t})
	}
	return tracks, nil
}

func (s *YouTubeStore) get(ctx context.Context, rawURL string, limit int64) ([]byte, error) {
	resp, err := retry.HTTP(ctx, s.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", s.userAgent())
		req.Header.Set("Accept-Language", s.acceptLanguage)
		req.Header.Set("Cookie", "CONSENT=YES+1")
		return s.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

func extractPlayerResponse(page []byte) (*playerResponse, error) {
	idx := bytes.Index(page, []byte(playerMarker))
	if idx < 0 {
		return nil, errors.New("观看页中没有 ytInitialPlayerResponse")
	}
	var player playerResponse
	dec := json.NewDecoder(bytes.NewReader(page[idx+len(playerMarker):]))
	if err := dec.Decode(&player); err != nil {
		return nil, fmt.Errorf("解析 ytInitialPlayerResponse 失败: %w", err)
	}
	return &player, nil
}

// needsPoToken 带 &exp=xpe 的字幕地址只能在浏览器里获取
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

type youtubeTrack struct {
	store        *YouTubeStore
	info         captionTrack
	translatedTo string
}

func (t *youtubeTrack) LanguageCode() string {
	if t.translatedTo != "" {
		return t.translatedTo
	}
	return t.info.LanguageCode
}

func (t *youtubeTrack) IsGenerated() bool    { return t.info.Kind == "asr" }
func (t *youtubeTrack) IsTranslatable() bool { return t.info.Translatable }

func (t *youtubeTrack) Translate(lang string) (Track, error) {
	if !t.info.Translatable {
		return nil, fmt.Errorf("字幕轨 %s 不支持翻译", t.info.LanguageCode)
	}
	if lang == "" {
		return nil, errors.New("目标语言为空")
	}
	return &youtubeTrack{store: t.store, info: t.info, translatedTo: lang}, nil
}

func (t *youtubeTrack) Fetch(ctx context.Context) ([]models.Cue, error) {
	u, err := url.Parse(t.info.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("字幕地址无效: %w", err)
	}
	q := u.Query()
	// 默认格式才是 <transcript><text start dur> 结构
	q.Del("fmt")
	if t.translatedTo != "" {
		q.Set("tlang", t.translatedTo)
	}
	u.RawQuery = q.Encode()

	body, err := t.store.get(ctx, u.String(), maxTimedTextSize)
	if err != nil {
		return nil, fmt.Errorf("获取字幕失败: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("字幕内容为空")
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]models.Cue, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("解析字幕 XML 失败: %w", err)
	}
	cues := make([]models.Cue, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		cues = append(cues, models.Cue{
			Start: line.Start,
			End:   line.Start + line.Dur,
			Text:  text,
		})
	}
	return cues, nil
}
