package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Mask replaces credential values in log output.
const Mask = "***"

// maskedKeys are attribute keys whose values are always masked. A scan
// touches third-party infrastructure, so anything resembling a
// credential must never reach the log stream.
var maskedKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,

	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
	"secret_key":    true,

	"credential":  true,
	"credentials": true,
	"auth":        true,
}

// maskedValues match credential material regardless of the attribute
// key. Bare hex digests are deliberately not matched here: event
// identifiers are SHA-1 hashes and must stay legible.
var maskedValues = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	// Authorization header values
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// AWS access key IDs
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	// PEM private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// MaskingHandler wraps an slog.Handler and masks credential material in
// attribute values before the record reaches the underlying handler.
// URLs with embedded userinfo keep their host and path; only the
// credentials are replaced.
type MaskingHandler struct {
	handler slog.Handler
}

// NewMaskingHandler wraps handler. A nil handler falls back to
// slog.Default().Handler().
func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskingHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and forwards it.
func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs masks the attributes before adding them.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup returns a handler scoped to the given group.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name)}
}

func (h *MaskingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			maskedAttrs[i] = h.maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if maskedKeys[keyLower] || hasCredentialKeyword(keyLower) {
		return slog.String(a.Key, Mask)
	}

	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		if isCredentialValue(v) {
			return slog.String(a.Key, Mask)
		}
		if stripped, changed := maskURLUserinfo(v); changed {
			return slog.String(a.Key, stripped)
		}
	}

	return a
}

// hasCredentialKeyword reports whether the key embeds a credential
// keyword. The bare word "key" is excluded: it matches too much
// ("primary_key", "keyboard").
func hasCredentialKeyword(key string) bool {
	for _, keyword := range []string{
		"password", "passwd", "secret", "token", "auth", "credential",
	} {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

func isCredentialValue(value string) bool {
	for _, pattern := range maskedValues {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// maskURLUserinfo replaces embedded userinfo in an http(s) URL with the
// mask value, keeping the rest of the URL intact. Discovered URLs are
// the most common attribute in scan logs and occasionally carry
// credentials in the authority component.
func maskURLUserinfo(value string) (string, bool) {
	if !strings.Contains(value, "@") {
		return value, false
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return value, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return value, false
	}
	u.User = url.User(Mask)
	return u.String(), true
}

// New builds the scanner's logger: a text handler behind the masking
// wrapper. Verbose enables debug level; the default is info.
func New(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewMaskingHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewJSON is New with JSON output, for log aggregation.
func NewJSON(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewMaskingHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
