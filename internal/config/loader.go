package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the syntax from the file extension. Anything other than
// ".toml" is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"translate":  {"httpapi", "llm"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"deepgram", "whisper", "whisper-native", "openai"},
	"tts":        {"elevenlabs", "coqui"},
	"embeddings": {"openai"},
}

// minJWTSecret mirrors the minimum accepted by the auth verifier.
const minJWTSecret = 16

// Load reads the configuration file at path, applies defaults and returns a
// validated [Config]. Files ending in ".toml" are parsed as TOML, everything
// else as YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	return Decode(r, FormatYAML)
}

// Decode reads a config in the given format from r, applies defaults and
// validates the result. Unknown keys are rejected in both formats.
func Decode(r io.Reader, format Format) (*Config, error) {
	cfg := &Config{}
	switch format {
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: decode toml: unknown keys %s", strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if p := cfg.Server.MetricsPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("server.metrics_path %q must start with /", p))
	}
	if r := cfg.Server.TraceSampleRatio; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("server.trace_sample_ratio %v must be between 0 and 1", *r))
	}

	// Auth
	if s := cfg.Auth.JWTSecret; s != "" && len(s) < minJWTSecret {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d bytes", minJWTSecret))
	}
	if cfg.Auth.Leeway < 0 {
		errs = append(errs, errors.New("auth.leeway must not be negative"))
	}
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("auth.jwt_secret is empty; the API accepts unauthenticated requests")
	}

	// Database
	if cfg.Database.EmbeddingDimensions < 0 {
		errs = append(errs, errors.New("database.embedding_dimensions must not be negative"))
	}
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; vocabulary and practice history are kept in memory")
	}

	// Providers
	validateProviderEntry("translate", "providers.translate", cfg.Providers.Translate)
	validateProviderEntry("llm", "providers.llm", cfg.Providers.LLM)
	validateProviderEntry("stt", "providers.stt", cfg.Providers.STT)
	validateProviderEntry("tts", "providers.tts", cfg.Providers.TTS)
	validateProviderEntry("embeddings", "providers.embeddings", cfg.Providers.Embeddings)

	usesLLM := cfg.Providers.Translate.Name == "llm" || slices.ContainsFunc(cfg.Providers.Translate.Fallbacks, func(e ProviderEntry) bool {
		return e.Name == "llm"
	})
	if usesLLM && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.translate uses \"llm\" but providers.llm is not configured"))
	}
	if cfg.Providers.Translate.Name == "httpapi" && cfg.Providers.Translate.BaseURL == "" {
		errs = append(errs, errors.New("providers.translate.base_url is required for httpapi"))
	}
	if cfg.Providers.Translate.Name == "" {
		slog.Warn("providers.translate is not configured; word lookups will fail")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; pronunciation scoring is disabled")
	}

	// Lookup
	for _, d := range []struct {
		name  string
		value int64
	}{
		{"lookup.word_debounce", int64(cfg.Lookup.WordDebounce)},
		{"lookup.auto_hide", int64(cfg.Lookup.AutoHide)},
		{"lookup.grace_period", int64(cfg.Lookup.GracePeriod)},
		{"lookup.confirm_display", int64(cfg.Lookup.ConfirmDisplay)},
		{"lookup.api_debounce_min", int64(cfg.Lookup.APIDebounceMin)},
		{"lookup.api_debounce_max", int64(cfg.Lookup.APIDebounceMax)},
		{"lookup.request_timeout", int64(cfg.Lookup.RequestTimeout)},
		{"lookup.retry.base", int64(cfg.Lookup.Retry.Base)},
		{"lookup.retry.cap", int64(cfg.Lookup.Retry.Cap)},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}
	if cfg.Lookup.APIDebounceMax < cfg.Lookup.APIDebounceMin {
		errs = append(errs, fmt.Errorf("lookup.api_debounce_max %s is below api_debounce_min %s", cfg.Lookup.APIDebounceMax, cfg.Lookup.APIDebounceMin))
	}
	if f := cfg.Lookup.Retry.Factor; f != 0 && f < 1 {
		errs = append(errs, fmt.Errorf("lookup.retry.factor %.2f must be at least 1", f))
	}

	// Scoring
	s := cfg.Scoring
	if s.WordMatchRatio < 0 || s.WordMatchRatio > 1 {
		errs = append(errs, fmt.Errorf("scoring.word_match_ratio %.2f is out of range [0, 1]", s.WordMatchRatio))
	}
	if s.WordMatchScale < 0 || s.WordMatchScale > 100 {
		errs = append(errs, fmt.Errorf("scoring.word_match_scale %.2f is out of range [0, 100]", s.WordMatchScale))
	}
	if s.CharFallbackCap < 0 || s.CharFallbackCap > 100 {
		errs = append(errs, fmt.Errorf("scoring.char_fallback_cap %d is out of range [0, 100]", s.CharFallbackCap))
	}
	if s.MaxConfidenceBonus < 0 || s.MaxConfidenceBonus > 100 {
		errs = append(errs, fmt.Errorf("scoring.max_confidence_bonus %.2f is out of range [0, 100]", s.MaxConfidenceBonus))
	}
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"scoring.poor_audio_confidence", s.PoorAudioConfidence},
		{"scoring.low_confidence", s.LowConfidence},
		{"scoring.phonetic_threshold", s.PhoneticThreshold},
	} {
		if c.value < 0 || c.value > 1 {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", c.name, c.value))
		}
	}
	if s.SilenceRMS < 0 {
		errs = append(errs, errors.New("scoring.silence_rms must not be negative"))
	}

	// Voices
	for lang, v := range cfg.Voices {
		if strings.TrimSpace(lang) == "" {
			errs = append(errs, errors.New("voices: language key must not be empty"))
		}
		if v.VoiceID == "" && cfg.Providers.TTS.Name == "elevenlabs" {
			errs = append(errs, fmt.Errorf("voices.%s.voice_id is required for elevenlabs", lang))
		}
	}

	return errors.Join(errs...)
}

// validateProviderEntry warns about unknown names on entry and its fallbacks.
func validateProviderEntry(kind, path string, entry ProviderEntry) {
	validateProviderName(kind, entry.Name)
	for i, fb := range entry.Fallbacks {
		if fb.Name == "" {
			slog.Warn("provider fallback has no name and will be skipped", "path", fmt.Sprintf("%s.fallbacks[%d]", path, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
