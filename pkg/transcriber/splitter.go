package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z-wentao/ytscribe/pkg/command"
	"github.com/z-wentao/ytscribe/pkg/models"
)

// Splitter 把长音频切成按时间顺序排列的窗口
type Splitter interface {
	Split(ctx context.Context, audioPath, dir string) ([]models.Segment, error)
}

// AudioSplitter 基于 ffprobe/ffmpeg 的音频分片器
type AudioSplitter struct {
	threshold float64 // 超过该时长（秒）才切分
	window    float64 // 每个窗口的时长（秒）
	ffprobe   string
	ffmpeg    string
	runner    command.Runner
	logger    *slog.Logger
}

// NewAudioSplitter 创建分片器，threshold/window 单位为秒，默认都是 300
func NewAudioSplitter(runner command.Runner, threshold, window int, logger *slog.Logger) *AudioSplitter {
	if threshold <= 0 {
		threshold = 300
	}
	if window <= 0 {
		window = 300
	}
	if runner == nil {
		runner = command.Exec{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioSplitter{
		threshold: float64(threshold),
		window:    float64(window),
		ffprobe:   "ffprobe",
		ffmpeg:    "ffmpeg",
		runner:    runner,
		logger:    logger,
	}
}

// Split 音频不超过阈值时原样返回一个片段；否则在 dir/windows 下生成 ceil(时长/窗口) 个片段
func (as *AudioSplitter) Split(ctx context.Context, audioPath, dir string) ([]models.Segment, error) {
	duration, err := as.Duration(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("获取音频时长失败: %w", err)
	}
	as.logger.Info("📊 音频时长", slog.Float64("seconds", duration))

	if duration <= as.threshold {
		return []models.Segment{{Index: 0, FilePath: audioPath, Start: 0, End: duration}}, nil
	}

	count := int(math.Ceil(duration / as.window))
	as.logger.Info("✂️ 切分长音频", slog.Int("windows", count), slog.Float64("window_seconds", as.window))

	windowsDir := filepath.Join(dir, "windows")
	if err := os.MkdirAll(windowsDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建片段目录失败: %w", err)
	}

	ext := filepath.Ext(audioPath)
	segments := make([]models.Segment, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * as.window
		end := math.Min(start+as.window, duration)
		out := filepath.Join(windowsDir, fmt.Sprintf("segment_%03d%s", i, ext))

		if err := as.extract(ctx, audioPath, out, start, as.window); err != nil {
			return nil, fmt.Errorf("切分片段 %d 失败: %w", i, err)
		}
		segments = append(segments, models.Segment{Index: i, FilePath: out, Start: start, End: end})
	}
	return segments, nil
}

// Duration 用 ffprobe 读取时长（秒）
func (as *AudioSplitter) Duration(ctx context.Context, audioPath string) (float64, error) {
	stdout, _, err := as.runner.Run(ctx, as.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		return 0, err
	}
	out := strings.TrimSpace(string(stdout))
	if out == "" {
		return 0, fmt.Errorf("ffprobe 未返回时长信息")
	}
	duration, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("解析时长失败: %w (output: %s)", err, out)
	}
	return duration, nil
}

func (as *AudioSplitter) extract(ctx context.Context, in, out string, start, length float64) error {
	_, _, err := as.runner.Run(ctx, as.ffmpeg,
		"-i", in,
		"-ss", fmt.Sprintf("%.2f", start),
		"-t", fmt.Sprintf("%.2f", length),
		"-acodec", "copy",
		"-y",
		out,
	)
	return err
}
