package downloader

import (
	"math/rand/v2"

	stealth "github.com/anatolykoptev/go-stealth"
)

// SelectionPolicy 每次下载尝试前挑选请求身份
type SelectionPolicy interface {
	PickUserAgent() string
	// PickProxy 返回 "" 表示直连
	PickProxy() string
}

// RandomPolicy 从配置的池中均匀随机选择
type RandomPolicy struct {
	userAgents []string
	proxies    []string
}

// NewRandomPolicy 创建随机选择策略；UA 池为空时使用随机生成的浏览器 UA
func NewRandomPolicy(userAgents, proxies []string) *RandomPolicy {
	return &RandomPolicy{userAgents: userAgents, proxies: proxies}
}

func (p *RandomPolicy) PickUserAgent() string {
	if len(p.userAgents) == 0 {
		return stealth.RandomUserAgent()
	}
	return p.userAgents[rand.IntN(len(p.userAgents))]
}

func (p *RandomPolicy) PickProxy() string {
	if len(p.proxies) == 0 {
		return ""
	}
	return p.proxies[rand.IntN(len(p.proxies))]
}
