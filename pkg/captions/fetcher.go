package captions

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/z-wentao/ytscribe/pkg/models"
)

// Track 字幕存储中的一条字幕轨
type Track interface {
	LanguageCode() string
	// IsGenerated 为 true 表示平台自动生成（ASR）的字幕
	IsGenerated() bool
	IsTranslatable() bool
	Fetch(ctx context.Context) ([]models.Cue, error)
	// Translate 返回由字幕存储翻译成 lang 的字幕轨
	Translate(lang string) (Track, error)
}

// Store 外部字幕存储
type Store interface {
	ListTracks(ctx context.Context, videoID models.VideoReference) ([]Track, error)
}

// Fetcher 按"人工字幕 > 自动字幕"的顺序获取已有字幕
// 所有内部失败都降级为"没有字幕"，由调用方转入 AI 转录
type Fetcher struct {
	store  Store
	logger *slog.Logger
}

// NewFetcher 创建字幕获取器
func NewFetcher(store Store, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{store: store, logger: logger}
}

// Fetch 返回拼接后的字幕文本；没有可用字幕时 ok 为 false
func (f *Fetcher) Fetch(ctx context.Context, ref models.VideoReference, preferredLang string) (string, bool) {
	result, ok := f.FetchTranscript(ctx, ref, preferredLang)
	if !ok {
		return "", false
	}
	return result.Text, true
}

// FetchTranscript 与 Fetch 相同，但保留字幕时间轴和语言
func (f *Fetcher) FetchTranscript(ctx context.Context, ref models.VideoReference, preferredLang string) (*models.TranscriptResult, bool) {
	logger := f.logger.With(slog.String("video_id", ref.String()))

	tracks, err := f.store.ListTracks(ctx, ref)
	if err != nil {
		logger.Warn("⚠️ 字幕列表获取失败", slog.Any("error", err))
		return nil, false
	}
	if len(tracks) == 0 {
		logger.Info("该视频没有字幕")
		return nil, false
	}

	var manual, generated []Track
	for _, t := range tracks {
		if t.IsGenerated() {
			generated = append(generated, t)
		} else {
			manual = append(manual, t)
		}
	}

	// 只要某一类存在就只在这一类里取，不再尝试其它回退路径
	for _, group := range [][]Track{manual, generated} {
		if len(group) == 0 {
			continue
		}
		return f.fromGroup(ctx, logger, group, preferredLang)
	}
	return nil, false
}

func (f *Fetcher) fromGroup(ctx context.Context, logger *slog.Logger, group []Track, preferredLang string) (*models.TranscriptResult, bool) {
	track := pickTrack(group, preferredLang)
	logger = logger.With(
		slog.String("track_lang", track.LanguageCode()),
		slog.Bool("generated", track.IsGenerated()))

	if preferredLang != "" && !sameLanguage(track.LanguageCode(), preferredLang) && track.IsTranslatable() {
		if result, ok := f.fetchTranslated(ctx, track, preferredLang); ok {
			logger.Info("✓ 使用字幕存储翻译后的字幕", slog.String("lang", preferredLang))
			return result, true
		}
		logger.Info("字幕翻译失败，回退到原始字幕", slog.String("lang", preferredLang))
	}

	cues, err := track.Fetch(ctx)
	if err != nil {
		logger.Warn("⚠️ 字幕下载失败", slog.Any("error", err))
		return nil, false
	}
	text := JoinCues(cues)
	if text == "" {
		return nil, false
	}
	logger.Info("✓ 已获取字幕", slog.Int("cues", len(cues)), slog.Int("chars", len(text)))
	return &models.TranscriptResult{
		Text:           text,
		SourceLanguage: track.LanguageCode(),
		Origin:         models.OriginCaption,
		Cues:           cues,
	}, true
}

func (f *Fetcher) fetchTranslated(ctx context.Context, track Track, lang string) (*models.TranscriptResult, bool) {
	translated, err := track.Translate(lang)
	if err != nil {
		return nil, false
	}
	cues, err := translated.Fetch(ctx)
	if err != nil {
		return nil, false
	}
	text := JoinCues(cues)
	if text == "" {
		return nil, false
	}
	return &models.TranscriptResult{
		Text:           text,
		SourceLanguage: lang,
		Origin:         models.OriginCaption,
		Cues:           cues,
	}, true
}

// pickTrack 优先选择与偏好语言相同的字幕轨，否则取第一条
func pickTrack(group []Track, preferredLang string) Track {
	if preferredLang != "" {
		for _, t := range group {
			if sameLanguage(t.LanguageCode(), preferredLang) {
				return t
			}
		}
	}
	return group[0]
}

func sameLanguage(a, b string) bool {
	base := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if i := strings.IndexAny(s, "-_"); i > 0 {
			return s[:i]
		}
		return s
	}
	return strings.EqualFold(a, b) || (base(a) != "" && base(a) == base(b))
}

// JoinCues 按时间顺序用单个空格拼接字幕文本，不做标点处理
func JoinCues(cues []models.Cue) string {
	ordered := make([]models.Cue, len(cues))
	copy(ordered, cues)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var builder strings.Builder
	for _, cue := range ordered {
		if cue.Text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(cue.Text)
	}
	return builder.String()
}
