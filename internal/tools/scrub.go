package tools

import (
	"regexp"
	"strings"
	"sync"
)

// Credential patterns scrubbed from tool output. Provider errors can echo
// request headers or connection strings back to the caller.
var credentialPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	// OpenAI and compatible gateways
	{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), redactedPlaceholder},
	// Jina
	{regexp.MustCompile(`jina_[a-zA-Z0-9]{20,}`), redactedPlaceholder},
	// AWS access key ids
	{regexp.MustCompile(`AKIA[A-Z0-9]{16}`), redactedPlaceholder},
	// Passwords inside postgres:// and redis:// URLs
	{regexp.MustCompile(`(://[^:/@\s]+:)[^@\s]+(@)`), "${1}" + redactedPlaceholder + "${2}"},
	// Generic key=value patterns (case-insensitive)
	{regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|bearer|authorization)\s*[:=]\s*["']?\S{8,}["']?`), redactedPlaceholder},
}

const redactedPlaceholder = "[REDACTED]"

// Scrubber removes credentials from text: the configured secret values
// verbatim, then the generic patterns.
type Scrubber struct {
	mu      sync.RWMutex
	secrets []string
}

// AddSecret registers a literal value to redact. Short values are ignored
// to avoid mangling ordinary words.
func (s *Scrubber) AddSecret(v string) {
	if len(v) < 8 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = append(s.secrets, v)
}

// Scrub returns text with every known credential replaced by [REDACTED].
func (s *Scrubber) Scrub(text string) string {
	s.mu.RLock()
	for _, secret := range s.secrets {
		text = strings.ReplaceAll(text, secret, redactedPlaceholder)
	}
	s.mu.RUnlock()
	return ScrubCredentials(text)
}

// ScrubCredentials replaces known credential patterns in text with [REDACTED].
func ScrubCredentials(text string) string {
	for _, p := range credentialPatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return text
}
