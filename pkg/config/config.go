package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/goccy/go-yaml"

	"github.com/z-wentao/ytscribe/pkg/downloader"
)

// Config 应用配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Queue       QueueConfig       `yaml:"queue"`
	Storage     StorageConfig     `yaml:"storage"`
	Download    DownloadConfig    `yaml:"download"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Captions    CaptionsConfig    `yaml:"captions"`
	Translator  TranslatorConfig  `yaml:"translator"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port              int `yaml:"port"`
	WorkerPoolSize    int `yaml:"worker_pool_size"`    // 同时处理多少个视频
	JobTimeoutMinutes int `yaml:"job_timeout_minutes"` // 单个任务的最长处理时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// QueueConfig 队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"` // memory | rabbitmq
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
}

// StorageConfig 任务状态存储配置
type StorageConfig struct {
	Type  string      `yaml:"type"` // memory | redis
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"` // 任务保留时长
}

// DownloadConfig 音频下载配置
type DownloadConfig struct {
	Binary           string   `yaml:"binary"`
	UserAgents       []string `yaml:"user_agents"`
	Referer          string   `yaml:"referer"`
	AcceptLanguage   string   `yaml:"accept_language"`
	Proxies          []string `yaml:"proxies"`
	CookieFile       string   `yaml:"cookie_file"`
	MaxAttempts      int      `yaml:"max_attempts"`
	InitialBackoffMs int      `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int      `yaml:"max_backoff_ms"`
	SleepMinSeconds  int      `yaml:"sleep_min_seconds"`
	SleepMaxSeconds  int      `yaml:"sleep_max_seconds"`
	ThrottledRate    string   `yaml:"throttled_rate"`
	AudioFormat      string   `yaml:"audio_format"`
	AudioQuality     string   `yaml:"audio_quality"`
	Channels         int      `yaml:"channels"`
}

// TranscriberConfig 语音识别配置
type TranscriberConfig struct {
	Backend            string `yaml:"backend"` // whispercpp | openai
	Binary             string `yaml:"binary"`  // whisper-cli 路径
	ModelDir           string `yaml:"model_dir"`
	PreferredModel     string `yaml:"preferred_model"` // 有 GPU 时使用
	FallbackModel      string `yaml:"fallback_model"`
	Threads            int    `yaml:"threads"`
	LongAudioThreshold int    `yaml:"long_audio_threshold"` // 秒
	WindowDuration     int    `yaml:"window_duration"`      // 秒
	TempDir            string `yaml:"temp_dir"`
	LanguageHint       string `yaml:"language_hint"`
}

// CaptionsConfig 字幕获取配置
type CaptionsConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	AcceptLanguage string `yaml:"accept_language"`
}

// TranslatorConfig 翻译配置
type TranslatorConfig struct {
	Backend          string `yaml:"backend"` // google | llm
	Endpoint         string `yaml:"endpoint"`
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkDelayMs     int    `yaml:"chunk_delay_ms"`
	MaxAttempts      int    `yaml:"max_attempts"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	TranscriptionModel string `yaml:"transcription_model"`
	ChatModel          string `yaml:"chat_model"`
}

// Path 返回配置文件路径，可用 YTSCRIBE_CONFIG 覆盖
func Path() string {
	return env.Str("YTSCRIBE_CONFIG", "config.yaml")
}

// Default 不依赖配置文件即可运行的默认配置
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig 加载配置文件；文件不存在时使用默认配置，环境变量最后覆盖
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &config, nil
}

// applyEnv 环境变量只在启动时读取一次
func (c *Config) applyEnv() {
	var proxies []string
	for _, p := range env.List("YT_PROXIES", "") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if len(proxies) > 0 {
		c.Download.Proxies = proxies
	}
	c.Download.CookieFile = env.Str("YT_COOKIE_FILE", c.Download.CookieFile)
	c.OpenAI.APIKey = env.Str("OPENAI_API_KEY", c.OpenAI.APIKey)
}

// Validate 验证配置并补全默认值
func (c *Config) Validate() error {
	c.applyDefaults()

	switch c.Queue.Type {
	case "memory", "rabbitmq":
	default:
		return fmt.Errorf("未知的队列类型: %s", c.Queue.Type)
	}
	if c.Queue.Type == "rabbitmq" && c.Queue.RabbitMQ.URL == "" {
		return errors.New("使用 rabbitmq 队列时必须设置 queue.rabbitmq.url")
	}

	switch c.Storage.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("未知的存储类型: %s", c.Storage.Type)
	}

	switch c.Transcriber.Backend {
	case "whispercpp":
	case "openai":
		if c.OpenAI.APIKey == "" || c.OpenAI.APIKey == "your-openai-api-key-here" {
			return errors.New("使用 openai 识别时请设置有效的 OpenAI API Key")
		}
	default:
		return fmt.Errorf("未知的识别后端: %s", c.Transcriber.Backend)
	}

	switch c.Translator.Backend {
	case "google":
	case "llm":
		if c.OpenAI.APIKey == "" {
			return errors.New("使用 llm 翻译时请设置 OpenAI API Key")
		}
	default:
		return fmt.Errorf("未知的翻译后端: %s", c.Translator.Backend)
	}

	opts := c.Download.Options()
	return opts.Validate()
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.WorkerPoolSize <= 0 {
		c.Server.WorkerPoolSize = 2
	}
	if c.Server.JobTimeoutMinutes <= 0 {
		c.Server.JobTimeoutMinutes = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.RabbitMQ.QueueName == "" {
		c.Queue.RabbitMQ.QueueName = "ytscribe_jobs"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.TTLHours <= 0 {
		c.Storage.Redis.TTLHours = 24
	}

	if c.Download.CookieFile == "" {
		c.Download.CookieFile = "cookies.txt"
	}
	if c.Download.MaxAttempts <= 0 {
		c.Download.MaxAttempts = 3
	}
	if c.Download.InitialBackoffMs <= 0 {
		c.Download.InitialBackoffMs = 1000
	}
	if c.Download.MaxBackoffMs <= 0 {
		c.Download.MaxBackoffMs = 10000
	}
	if c.Download.SleepMinSeconds == 0 && c.Download.SleepMaxSeconds == 0 {
		c.Download.SleepMinSeconds, c.Download.SleepMaxSeconds = 1, 3
	}

	if c.Transcriber.Backend == "" {
		c.Transcriber.Backend = "whispercpp"
	}
	if c.Transcriber.ModelDir == "" {
		c.Transcriber.ModelDir = "models"
	}
	if c.Transcriber.PreferredModel == "" {
		c.Transcriber.PreferredModel = "medium"
	}
	if c.Transcriber.FallbackModel == "" {
		c.Transcriber.FallbackModel = "base"
	}
	if c.Transcriber.LongAudioThreshold <= 0 {
		c.Transcriber.LongAudioThreshold = 300
	}
	if c.Transcriber.WindowDuration <= 0 {
		c.Transcriber.WindowDuration = 300
	}

	if c.Captions.TimeoutSeconds <= 0 {
		c.Captions.TimeoutSeconds = 20
	}
	if c.Captions.AcceptLanguage == "" {
		c.Captions.AcceptLanguage = "en-US,en;q=0.5"
	}

	if c.Translator.Backend == "" {
		c.Translator.Backend = "google"
	}
	if c.Translator.ChunkSize <= 0 {
		c.Translator.ChunkSize = 4999
	}
	if c.Translator.ChunkDelayMs <= 0 {
		c.Translator.ChunkDelayMs = 500
	}
	if c.Translator.MaxAttempts <= 0 {
		c.Translator.MaxAttempts = 3
	}
	if c.Translator.InitialBackoffMs <= 0 {
		c.Translator.InitialBackoffMs = 4000
	}
	if c.Translator.MaxBackoffMs <= 0 {
		c.Translator.MaxBackoffMs = 10000
	}

	if c.OpenAI.TranscriptionModel == "" {
		c.OpenAI.TranscriptionModel = "whisper-1"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
}

// Options 转换为下载器配置，零值字段由 downloader.Options.Validate 补全
func (d DownloadConfig) Options() downloader.Options {
	return downloader.Options{
		Binary:         d.Binary,
		UserAgents:     d.UserAgents,
		Referer:        d.Referer,
		AcceptLanguage: d.AcceptLanguage,
		Proxies:        append([]string(nil), d.Proxies...),
		CookieFile:     d.CookieFile,
		MaxAttempts:    d.MaxAttempts,
		InitialBackoff: time.Duration(d.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(d.MaxBackoffMs) * time.Millisecond,
		SleepMin:       time.Duration(d.SleepMinSeconds) * time.Second,
		SleepMax:       time.Duration(d.SleepMaxSeconds) * time.Second,
		ThrottledRate:  d.ThrottledRate,
		AudioFormat:    d.AudioFormat,
		AudioQuality:   d.AudioQuality,
		Channels:       d.Channels,
	}
}

// JobTimeout 单个任务的超时
func (s ServerConfig) JobTimeout() time.Duration {
	return time.Duration(s.JobTimeoutMinutes) * time.Minute
}

// TTL Redis 中任务的保留时长
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}
