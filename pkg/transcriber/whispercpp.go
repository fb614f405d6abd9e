package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z-wentao/ytscribe/pkg/command"
	"github.com/z-wentao/ytscribe/pkg/language"
	"github.com/z-wentao/ytscribe/pkg/models"
)

// WhisperCPPLoader 从 ModelDir 加载 ggml-<variant>.bin 模型
type WhisperCPPLoader struct {
	Binary   string // whisper-cli 可执行文件
	FFmpeg   string
	ModelDir string
	Threads  int
	Runner   command.Runner
}

// Load 实现 ModelLoader；只校验模型文件存在，真正的推理在每次调用 CLI 时进行
func (l *WhisperCPPLoader) Load(_ context.Context, spec ModelSpec) (Recognizer, error) {
	modelPath := filepath.Join(l.ModelDir, "ggml-"+spec.Variant+".bin")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("模型文件不存在: %s", modelPath)
	}
	runner := l.Runner
	if runner == nil {
		runner = command.Exec{}
	}
	binary := l.Binary
	if binary == "" {
		binary = "whisper-cli"
	}
	ffmpeg := l.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &WhisperCPP{
		binary:    binary,
		ffmpeg:    ffmpeg,
		modelPath: modelPath,
		threads:   l.Threads,
		gpu:       spec.Accelerated,
		runner:    runner,
	}, nil
}

// WhisperCPP 调用 whisper.cpp 命令行的识别器
type WhisperCPP struct {
	binary    string
	ffmpeg    string
	modelPath string
	threads   int
	gpu       bool
	runner    command.Runner
}

type whisperCPPOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"` // 毫秒
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Recognize 先转成 16kHz 单声道 WAV，再让 whisper.cpp 输出 JSON
func (w *WhisperCPP) Recognize(ctx context.Context, audioPath, languageHint string) (*Recognition, error) {
	base := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	wavPath := base + ".16k.wav"
	defer os.Remove(wavPath)

	if _, _, err := w.runner.Run(ctx, w.ffmpeg,
		"-y", "-i", audioPath,
		"-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le",
		wavPath,
	); err != nil {
		return nil, fmt.Errorf("音频转码失败: %w", err)
	}

	lang := "auto"
	if languageHint != "" {
		lang = language.Base(languageHint)
	}
	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-l", lang,
		"-oj",
		"-of", base,
		"-np",
	}
	if w.threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.threads))
	}
	if !w.gpu {
		args = append(args, "-ng")
	}

	jsonPath := base + ".json"
	defer os.Remove(jsonPath)
	if _, _, err := w.runner.Run(ctx, w.binary, args...); err != nil {
		return nil, fmt.Errorf("whisper.cpp 执行失败: %w", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("读取识别结果失败: %w", err)
	}
	return parseWhisperCPP(data)
}

func parseWhisperCPP(data []byte) (*Recognition, error) {
	var out whisperCPPOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析识别结果失败: %w", err)
	}

	rec := &Recognition{Language: language.FromName(out.Result.Language)}
	texts := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		rec.Segments = append(rec.Segments, models.Cue{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  text,
		})
	}
	rec.Text = strings.Join(texts, " ")
	return rec, nil
}
