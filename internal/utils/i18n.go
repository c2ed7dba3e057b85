package utils

// Server-side text for the terminal pages and error responses.
// Page layout and the task itself live in the frontend.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":                "ok",
		"error.retry":              "Something went wrong, please retry.",
		"stage.fishy":              "Something seems off with how you reached this page. Please return to Prolific and open the study link again.",
		"stage.already_completed":  "Our records show you have already completed this study. Thank you for your interest!",
		"stage.prohibited_browser": "Your browser is not supported for this study. Please switch to a different browser and open the study link again.",
		"stage.attention_failure":  "Unfortunately you did not pass the attention checks, so we cannot use your responses. Please enter the following code on Prolific:",
	},
	"zh": {
		"health.ok":                "好的",
		"error.retry":              "出了点问题，请重试。",
		"stage.fishy":              "您访问本页面的方式似乎有误。请返回 Prolific 重新打开研究链接。",
		"stage.already_completed":  "记录显示您已完成本研究。感谢您的参与！",
		"stage.prohibited_browser": "本研究不支持您的浏览器。请更换浏览器后重新打开研究链接。",
		"stage.attention_failure":  "很遗憾，您未通过注意力检查，我们无法使用您的回答。请在 Prolific 上输入以下代码：",
	},
}

// SupportedLocales lists the locales with server-side text.
var SupportedLocales = []string{"en", "zh"}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
