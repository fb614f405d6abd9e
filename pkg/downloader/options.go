package downloader

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Options 下载器的全部可调项
type Options struct {
	Binary string // yt-dlp 可执行文件

	// 请求身份
	UserAgents     []string
	Referer        string
	AcceptLanguage string
	Proxies        []string // 空字符串表示直连
	CookieFile     string   // 仅当文件存在时使用

	// 重试与限速
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SleepMin       time.Duration // 每次请求前的随机等待下限
	SleepMax       time.Duration
	ThrottledRate  string // 低于该速率时 yt-dlp 重新发起请求，如 "1M"

	// 输出音频
	AudioFormat  string
	AudioQuality string
	Channels     int
}

// DefaultUserAgents 桌面浏览器 UA 池
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// DefaultOptions 返回默认下载配置
func DefaultOptions() Options {
	return Options{
		Binary:         "yt-dlp",
		UserAgents:     append([]string(nil), DefaultUserAgents...),
		Referer:        "https://www.youtube.com/",
		AcceptLanguage: "en-US,en;q=0.5",
		CookieFile:     "cookies.txt",
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		SleepMin:       time.Second,
		SleepMax:       3 * time.Second,
		ThrottledRate:  "1M",
		AudioFormat:    "mp3",
		AudioQuality:   "192K",
		Channels:       1,
	}
}

// Validate 校验配置并为零值字段填充默认值
func (o *Options) Validate() error {
	def := DefaultOptions()

	if o.Binary == "" {
		o.Binary = def.Binary
	}
	if o.Referer == "" {
		o.Referer = def.Referer
	}
	if o.AcceptLanguage == "" {
		o.AcceptLanguage = def.AcceptLanguage
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts 不能为负数: %d", o.MaxAttempts)
	}
	if o.InitialBackoff == 0 {
		o.InitialBackoff = def.InitialBackoff
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = def.MaxBackoff
	}
	if o.InitialBackoff < 0 || o.MaxBackoff < 0 || o.SleepMin < 0 || o.SleepMax < 0 {
		return errors.New("等待时长不能为负数")
	}
	if o.MaxBackoff < o.InitialBackoff {
		return fmt.Errorf("max_backoff (%s) 小于 initial_backoff (%s)", o.MaxBackoff, o.InitialBackoff)
	}
	if o.SleepMax < o.SleepMin {
		return fmt.Errorf("sleep_max (%s) 小于 sleep_min (%s)", o.SleepMax, o.SleepMin)
	}
	if o.AudioFormat == "" {
		o.AudioFormat = def.AudioFormat
	}
	o.AudioFormat = strings.TrimPrefix(strings.ToLower(o.AudioFormat), ".")
	if o.AudioQuality == "" {
		o.AudioQuality = def.AudioQuality
	}
	if o.Channels == 0 {
		o.Channels = def.Channels
	}
	if o.Channels < 0 {
		return fmt.Errorf("channels 不能为负数: %d", o.Channels)
	}

	proxies := make([]string, 0, len(o.Proxies))
	for _, p := range o.Proxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	o.Proxies = proxies
	return nil
}
