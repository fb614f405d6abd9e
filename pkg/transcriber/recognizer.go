package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/z-wentao/ytscribe/pkg/models"
)

// Recognition 一段音频的识别结果
type Recognition struct {
	Text     string
	Language string       // 识别出的语言代码
	Segments []models.Cue // 相对本段音频起点的时间戳
}

// Recognizer 语音识别器
type Recognizer interface {
	Recognize(ctx context.Context, audioPath, languageHint string) (*Recognition, error)
}

// ModelSpec 要加载的模型规格
type ModelSpec struct {
	Variant     string // 模型大小，如 "medium"、"base"
	Accelerated bool   // 是否使用 GPU
}

// ModelLoader 加载识别模型，加载可能很慢
type ModelLoader interface {
	Load(ctx context.Context, spec ModelSpec) (Recognizer, error)
}

// LazyModel 进程内共享的识别模型：第一次使用时加载，之后复用
// 有 GPU 时先尝试较大的首选模型，失败或无 GPU 时降级为较小的备用模型
type LazyModel struct {
	loader    ModelLoader
	preferred string
	fallback  string
	detect    func() bool
	logger    *slog.Logger

	mu      sync.Mutex
	model   Recognizer
	variant string
}

// NewLazyModel 创建延迟加载的模型；detect 为 nil 时使用 DetectCUDA
func NewLazyModel(loader ModelLoader, preferred, fallback string, detect func() bool, logger *slog.Logger) *LazyModel {
	if detect == nil {
		detect = DetectCUDA
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == "" {
		fallback = preferred
	}
	return &LazyModel{
		loader:    loader,
		preferred: preferred,
		fallback:  fallback,
		detect:    detect,
		logger:    logger,
	}
}

// Get 返回已加载的模型，必要时加载；加载失败不会被缓存，下次调用会重试
func (m *LazyModel) Get(ctx context.Context) (Recognizer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model != nil {
		return m.model, nil
	}

	accelerated := m.detect()
	specs := []ModelSpec{{Variant: m.fallback, Accelerated: accelerated}}
	if accelerated && m.preferred != m.fallback {
		specs = []ModelSpec{
			{Variant: m.preferred, Accelerated: true},
			{Variant: m.fallback, Accelerated: true},
		}
	}

	var lastErr error
	for _, spec := range specs {
		m.logger.Info("🧠 加载识别模型", slog.String("variant", spec.Variant), slog.Bool("gpu", spec.Accelerated))
		model, err := m.loader.Load(ctx, spec)
		if err != nil {
			lastErr = err
			m.logger.Warn("⚠️ 模型加载失败，尝试降级", slog.String("variant", spec.Variant), slog.Any("error", err))
			continue
		}
		m.model = model
		m.variant = spec.Variant
		m.logger.Info("✓ 识别模型已就绪", slog.String("variant", spec.Variant))
		return model, nil
	}
	return nil, fmt.Errorf("%w: 模型加载失败: %v", models.ErrRecognition, lastErr)
}

// Recognize 让 LazyModel 本身满足 Recognizer
func (m *LazyModel) Recognize(ctx context.Context, audioPath, languageHint string) (*Recognition, error) {
	model, err := m.Get(ctx)
	if err != nil {
		return nil, err
	}
	return model.Recognize(ctx, audioPath, languageHint)
}

// Variant 返回已加载的模型规格，未加载时为空
func (m *LazyModel) Variant() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variant
}

// DetectCUDA 通过 NVIDIA 设备文件或 nvidia-smi 判断是否有可用 GPU
func DetectCUDA() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok && (v == "" || v == "-1") {
		return false
	}
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}
