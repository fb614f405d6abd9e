package translator

import "strings"

// Language 可选的目标语言
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// catalog 固定的目标语言列表，顺序即展示顺序
var catalog = []Language{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"it", "Italian"},
	{"pt", "Portuguese"},
	{"ru", "Russian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"zh-cn", "Chinese (Simplified)"},
	{"hi", "Hindi"},
	{"ar", "Arabic"},
	{"bn", "Bengali"},
	{"ur", "Urdu"},
	{"te", "Telugu"},
	{"ta", "Tamil"},
	{"mr", "Marathi"},
	{"gu", "Gujarati"},
}

// 翻译服务要求的代码与目录代码不同的情况
var capabilityCodes = map[string]string{
	"zh-cn": "zh-CN",
}

// SupportedLanguages 返回目录副本，调用方修改不会影响目录
func SupportedLanguages() []Language {
	out := make([]Language, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup 按代码查找语言，大小写与下划线不敏感
func Lookup(code string) (Language, bool) {
	key := catalogKey(code)
	for _, l := range catalog {
		if l.Code == key {
			return l, true
		}
	}
	return Language{}, false
}

// IsSupported 判断是否在目录中
func IsSupported(code string) bool {
	_, ok := Lookup(code)
	return ok
}

// capabilityCode 把目录代码转换成翻译服务使用的代码
func capabilityCode(code string) string {
	key := catalogKey(code)
	if mapped, ok := capabilityCodes[key]; ok {
		return mapped
	}
	return key
}

// catalogKey 只做大小写与下划线折叠（"ZH_CN" → "zh-cn"），不做别名或名称映射
func catalogKey(code string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
}
