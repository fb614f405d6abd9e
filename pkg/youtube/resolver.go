package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/z-wentao/ytscribe/pkg/models"
)

// 视频 ID 只允许 YouTube 使用的 base64url 字符
var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// 可识别的链接形态：/watch?v=、youtu.be/、/embed/、/shorts/
var pathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/embed/([^/?&]+)`),
	regexp.MustCompile(`^/shorts/([^/?&]+)`),
	regexp.MustCompile(`^/live/([^/?&]+)`),
}

// Normalize 补全缺失的协议头
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + raw
	}
	return raw
}

// Resolve 从任意 YouTube 链接中提取视频 ID（纯函数，无 I/O）
func Resolve(raw string) (models.VideoReference, error) {
	u, err := url.Parse(Normalize(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidReference, raw)
	}

	host := canonicalHost(u.Hostname())
	var id string

	switch host {
	case "youtu.be":
		id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	case "youtube.com", "youtube-nocookie.com":
		if u.Path == "/watch" || u.Path == "/watch/" {
			id = u.Query().Get("v")
			break
		}
		for _, re := range pathPatterns {
			if m := re.FindStringSubmatch(u.Path); len(m) == 2 {
				id = m[1]
				break
			}
		}
	}

	if id == "" || !videoIDRE.MatchString(id) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidReference, raw)
	}
	return models.VideoReference(id), nil
}

// IsMediaHost 判断链接是否指向支持下载的媒体站点
func IsMediaHost(raw string) bool {
	u, err := url.Parse(Normalize(raw))
	if err != nil {
		return false
	}
	switch canonicalHost(u.Hostname()) {
	case "youtube.com", "youtu.be", "youtube-nocookie.com":
		return true
	}
	return false
}

func canonicalHost(host string) string {
	host = strings.ToLower(host)
	for _, prefix := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}
