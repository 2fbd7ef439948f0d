package transcriber

// DefaultLocale is used for any language code absent from the table.
// Resolution is a policy default, never a failure.
const DefaultLocale = "en-US"

var localeTable = map[string]string{
	"en":  "en-US",
	"es":  "es-ES",
	"fr":  "fr-FR",
	"de":  "de-DE",
	"ar":  "ar-SA",
	"it":  "it-IT",
	"ja":  "ja-JP",
	"ko":  "ko-KR",
	"pt":  "pt-BR",
	"yue": "yue-CN",
	"zh":  "zh-CN",
}

// ResolveLocale maps a simple language code to the extended identifier the
// recognizer backend requires. Unknown codes fall back to DefaultLocale.
func ResolveLocale(code string) string {
	if locale, ok := localeTable[code]; ok {
		return locale
	}
	return DefaultLocale
}
