package transcriber

import "github.com/hushlabs/scribe/internal/config"

// Settings exposes the user preferences the pipeline reads once per call.
type Settings interface {
	LanguageCode() string
	FormattingEnabled() bool
}

type configSettings struct {
	cfg config.TranscriberConfig
}

// NewConfigSettings adapts the loaded config into the Settings contract.
func NewConfigSettings(cfg config.TranscriberConfig) Settings {
	return &configSettings{cfg: cfg}
}

func (s *configSettings) LanguageCode() string {
	if s.cfg.Language == "" {
		return "en"
	}
	return s.cfg.Language
}

func (s *configSettings) FormattingEnabled() bool {
	return s.cfg.FormattingOn()
}
