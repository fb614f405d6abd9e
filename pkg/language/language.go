package language

import (
	"strings"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"
)

// 语音识别服务返回的是英文语言名（如 "english"），这里映射成语言代码
var nameToCode = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"mandarin":   "zh",
	"cantonese":  "yue",
	"hindi":      "hi",
	"arabic":     "ar",
	"bengali":    "bn",
	"urdu":       "ur",
	"telugu":     "te",
	"tamil":      "ta",
	"marathi":    "mr",
	"gujarati":   "gu",
	"dutch":      "nl",
	"turkish":    "tr",
	"polish":     "pl",
	"ukrainian":  "uk",
	"vietnamese": "vi",
	"indonesian": "id",
	"thai":       "th",
	"swedish":    "sv",
	"hebrew":     "he",
	"greek":      "el",
	"persian":    "fa",
}

// Normalize 把语言代码规范成小写 BCP-47 形式（"zh_CN" → "zh-cn"）
// 无法解析的输入原样转成小写返回
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return ""
	}
	if mapped, ok := nameToCode[strings.ToLower(code)]; ok {
		return mapped
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	return strings.ToLower(tag.String())
}

// FromName 把识别服务返回的语言名或代码统一成语言代码
func FromName(name string) string {
	return Normalize(name)
}

// Base 返回主语言部分（"pt-br" → "pt"）
func Base(code string) string {
	code = Normalize(code)
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}

// Title 将语言名转为首字母大写形式，用于提示词和展示
func Title(name string) string {
	return cases.Title(xlang.English).String(strings.ToLower(name))
}
