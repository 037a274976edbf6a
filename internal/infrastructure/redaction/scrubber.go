// Package redaction scrubs secrets out of audit fields and extension
// log output before either leaves the host.
package redaction

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// Scrubber replaces detected secrets in strings and nested values.
// Pattern fields are read-only after construction; the known-value
// registry carries its own lock, so one Scrubber is safe to share
// across dispatch goroutines.
type Scrubber struct {
	patterns []*regexp.Regexp
	hashMode bool
	salt     string

	// detector carries the gitleaks ruleset. Nil when disabled; the
	// fallback patterns still apply.
	detector *detect.Detector

	// known holds exact secret values registered at runtime, kept
	// sorted longest first so a value containing another scrubs whole.
	knownMu sync.RWMutex
	known   []string
}

// Config holds Scrubber construction options.
type Config struct {
	// Patterns adds custom regexes on top of the built-in set.
	Patterns []string
	// KnownValues seeds the exact-value registry. Values registered
	// later via Track join them.
	KnownValues []string
	// HashMode replaces secrets with a salted HMAC tag instead of
	// [REDACTED], so repeated occurrences stay correlatable.
	HashMode bool
	// Salt keys the HMAC in hash mode.
	Salt string
	// DisableDetector skips the gitleaks ruleset and relies on the
	// regex patterns alone.
	DisableDetector bool
}

// New builds a Scrubber. The gitleaks default ruleset is loaded unless
// disabled.
func New(cfg Config) (*Scrubber, error) {
	s := &Scrubber{
		hashMode: cfg.HashMode,
		salt:     cfg.Salt,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)+len(defaultPatterns)),
	}

	if !cfg.DisableDetector {
		detector, err := newDetector()
		if err != nil {
			return nil, err
		}
		s.detector = detector
	}

	for _, p := range defaultPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile default pattern %s: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile custom pattern %s: %w", p, err)
		}
		s.patterns = append(s.patterns, re)
	}

	for _, v := range cfg.KnownValues {
		s.Track(v)
	}

	return s, nil
}

// Track registers an exact value to scrub from everything the host
// writes. Empty values are ignored. Safe to call after construction;
// resolved secrets register themselves through this.
func (s *Scrubber) Track(value string) {
	if value == "" {
		return
	}
	s.knownMu.Lock()
	defer s.knownMu.Unlock()
	for _, existing := range s.known {
		if existing == value {
			return
		}
	}
	s.known = append(s.known, value)
	sort.Slice(s.known, func(i, j int) bool {
		return len(s.known[i]) > len(s.known[j])
	})
}

// scrubKnown replaces registered exact values.
func (s *Scrubber) scrubKnown(input string) string {
	s.knownMu.RLock()
	defer s.knownMu.RUnlock()
	for _, v := range s.known {
		input = strings.ReplaceAll(input, v, s.replacement(v))
	}
	return input
}

// newDetector loads the gitleaks default ruleset.
func newDetector() (*detect.Detector, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(config.DefaultConfig)); err != nil {
		return nil, fmt.Errorf("failed to read gitleaks config: %w", err)
	}

	var vc config.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gitleaks config: %w", err)
	}

	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("failed to translate gitleaks config: %w", err)
	}

	return detect.NewDetector(cfg), nil
}

// ScrubString replaces detected secrets in one string. Known exact
// values are replaced first, then the gitleaks ruleset, then the
// regex patterns.
func (s *Scrubber) ScrubString(input string) string {
	if input == "" {
		return ""
	}

	result := s.scrubKnown(input)

	if s.detector != nil {
		findings := s.detector.Detect(detect.Fragment{Raw: result})
		for _, finding := range findings {
			result = strings.ReplaceAll(result, finding.Secret, s.replacement(finding.Secret))
		}
	}

	for _, re := range s.patterns {
		result = re.ReplaceAllStringFunc(result, s.replacement)
	}

	return result
}

// ScrubValue walks maps, slices, and strings, scrubbing every string
// it reaches. Non-string leaves pass through unchanged.
func (s *Scrubber) ScrubValue(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		return s.ScrubString(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = s.ScrubValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = s.ScrubValue(val)
		}
		return out
	default:
		return v
	}
}

func (s *Scrubber) replacement(secret string) string {
	if s.hashMode {
		return s.hash(secret)
	}
	return "[REDACTED]"
}

// hash returns a truncated HMAC-SHA256 tag for the secret. Sixteen hex
// chars are enough to correlate repeats without enabling recovery.
func (s *Scrubber) hash(secret string) string {
	mac := hmac.New(sha256.New, []byte(s.salt))
	mac.Write([]byte(secret))
	sum := mac.Sum(nil)
	return fmt.Sprintf("[hmac:%s]", hex.EncodeToString(sum)[:16])
}

// defaultPatterns covers high-confidence secret shapes that must be
// caught even when the gitleaks ruleset is disabled.
var defaultPatterns = []string{
	// AWS access key ID
	`\b((?:AKIA|ABIA|ACCA|ASIA)[0-9A-Z]{16})\b`,
	// PEM private key header
	`-----BEGIN [A-Z ]+ PRIVATE KEY-----`,
	// GitHub token
	`gh[pousr]_[A-Za-z0-9_]{36,255}`,
	// Slack token
	`xox[baprs]-([0-9a-zA-Z]{10,48})?`,
}
