package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/z-wentao/ytscribe/pkg/command"
	"github.com/z-wentao/ytscribe/pkg/models"
	"github.com/z-wentao/ytscribe/pkg/retry"
	"github.com/z-wentao/ytscribe/pkg/youtube"
)

// Downloader 把视频的音轨下载到 dir 中，返回音频文件路径
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string) (string, error)
}

var botPattern = regexp.MustCompile(`(?i)\bbot\b|sign in to confirm`)

// 下载后可能残留的容器扩展名，统一改为目标音频格式
var containerExts = []string{".webm", ".m4a", ".opus"}

// YtDlp 基于 yt-dlp 命令行的下载器
type YtDlp struct {
	opts   Options
	policy SelectionPolicy
	runner command.Runner
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option 配置 YtDlp
type Option func(*YtDlp)

// WithPolicy 替换请求身份选择策略
func WithPolicy(p SelectionPolicy) Option {
	return func(d *YtDlp) { d.policy = p }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(d *YtDlp) { d.logger = l }
}

// WithSleeper 替换重试间的等待（测试用）
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *YtDlp) { d.sleep = fn }
}

// NewYtDlp 创建下载器，opts 会被校验并补全默认值
func NewYtDlp(opts Options, runner command.Runner, options ...Option) (*YtDlp, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("下载配置无效: %w", err)
	}
	if runner == nil {
		runner = command.Exec{}
	}
	d := &YtDlp{
		opts:   opts,
		runner: runner,
		logger: slog.Default(),
		sleep:  retry.Sleep,
	}
	for _, o := range options {
		o(d)
	}
	if d.policy == nil {
		d.policy = NewRandomPolicy(opts.UserAgents, opts.Proxies)
	}
	return d, nil
}

// Download 带反封锁重试的下载：每次尝试重新挑选 UA 和代理
func (d *YtDlp) Download(ctx context.Context, rawURL, dir string) (string, error) {
	rawURL = youtube.Normalize(rawURL)
	if !youtube.IsMediaHost(rawURL) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidReference, rawURL)
	}

	cfg := retry.Config{
		MaxAttempts: d.opts.MaxAttempts,
		InitialWait: d.opts.InitialBackoff + d.opts.SleepMin,
		MaxWait:     d.opts.MaxBackoff,
		Multiplier:  2,
		Jitter:      d.opts.SleepMax - d.opts.SleepMin,
		Sleep:       d.sleep,
		Name:        "download",
	}

	path, err := retry.Do(ctx, cfg, func(attempt int) (string, error) {
		path, err := d.attempt(ctx, rawURL, dir)
		if err == nil {
			return path, nil
		}
		var dlErr *models.DownloadError
		if errors.As(err, &dlErr) {
			dlErr.Attempts = attempt
			d.logger.Warn("⚠️ 下载失败",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", d.opts.MaxAttempts),
				slog.String("kind", string(dlErr.Kind)),
				slog.Any("error", dlErr.Err))
		}
		return "", err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (d *YtDlp) attempt(ctx context.Context, rawURL, dir string) (string, error) {
	ua := d.policy.PickUserAgent()
	proxy := d.policy.PickProxy()

	d.logger.Info("📥 开始下载音频",
		slog.String("url", rawURL),
		slog.Bool("proxy", proxy != ""),
		slog.Bool("cookies", d.cookieFile() != ""))

	stdout, stderr, err := d.runner.Run(ctx, d.opts.Binary, d.buildArgs(rawURL, dir, ua, proxy)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", classify(err, stderr)
	}

	path := lastLine(stdout)
	if path == "" {
		return "", &models.DownloadError{Kind: models.FailureEmptyResponse, Err: errors.New("yt-dlp 没有返回输出文件")}
	}

	resolved, ok := d.resolveOutput(path)
	if !ok {
		return "", &models.DownloadError{Kind: models.FailureMissingOutput, Err: fmt.Errorf("输出文件不存在: %s", path)}
	}
	d.logger.Info("✓ 音频下载完成", slog.String("path", resolved))
	return resolved, nil
}

func (d *YtDlp) buildArgs(rawURL, dir, ua, proxy string) []string {
	o := d.opts
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-simulate",
		"-f", "bestaudio/best",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--extract-audio",
		"--audio-format", o.AudioFormat,
		"--audio-quality", o.AudioQuality,
		"--postprocessor-args", "ffmpeg:-ac " + strconv.Itoa(o.Channels),
		"--user-agent", ua,
		"--referer", o.Referer,
		"--add-header", "Accept-Language:" + o.AcceptLanguage,
		"--retries", strconv.Itoa(o.MaxAttempts),
		"--fragment-retries", strconv.Itoa(o.MaxAttempts),
		"--print", "after_move:filepath",
	}
	if o.ThrottledRate != "" {
		args = append(args, "--throttled-rate", o.ThrottledRate)
	}
	if o.SleepMax > 0 {
		args = append(args,
			"--sleep-interval", formatSeconds(o.SleepMin),
			"--max-sleep-interval", formatSeconds(o.SleepMax))
	}
	if cookies := d.cookieFile(); cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	if proxy != "" {
		args = append(args, "--proxy", proxy)
	}
	return append(args, rawURL)
}

// cookieFile 只有文件存在时才返回路径
func (d *YtDlp) cookieFile() string {
	if d.opts.CookieFile == "" {
		return ""
	}
	if info, err := os.Stat(d.opts.CookieFile); err != nil || info.IsDir() {
		return ""
	}
	return d.opts.CookieFile
}

// resolveOutput 把 .webm/.m4a/.opus 换成目标格式扩展名，并确认文件存在
func (d *YtDlp) resolveOutput(path string) (string, bool) {
	candidates := []string{}
	ext := strings.ToLower(filepath.Ext(path))
	for _, c := range containerExts {
		if ext == c {
			candidates = append(candidates, strings.TrimSuffix(path, filepath.Ext(path))+"."+d.opts.AudioFormat)
		}
	}
	candidates = append(candidates, path)

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() && info.Size() > 0 {
			return c, true
		}
	}
	return "", false
}

func classify(err error, stderr []byte) error {
	msg := string(stderr)
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) && msg == "" {
		msg = cmdErr.Stderr
	}
	if botPattern.MatchString(msg) || botPattern.MatchString(err.Error()) {
		return &models.DownloadError{Kind: models.FailureBotDetected, Err: err}
	}
	return &models.DownloadError{Kind: models.FailureNetwork, Err: err}
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
