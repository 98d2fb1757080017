package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// Guard actions, set by server.injectionAction.
const (
	GuardOff   = "off"
	GuardLog   = "log"
	GuardWarn  = "warn"
	GuardBlock = "block"
)

// GuardedTool is implemented by tools whose string arguments end up in stored
// memories. The registry scans those arguments before Execute.
type GuardedTool interface {
	GuardedArgs() []string
}

type guardPattern struct {
	name    string
	pattern *regexp.Regexp
}

// ContentGuard flags memory content that looks like a prompt injection.
type ContentGuard struct {
	action   string
	patterns []guardPattern
}

// NewContentGuard returns a guard with the built-in patterns, or nil when
// action is "off".
func NewContentGuard(action string) (*ContentGuard, error) {
	switch action {
	case "":
		action = GuardWarn
	case GuardOff:
		return nil, nil
	case GuardLog, GuardWarn, GuardBlock:
	default:
		return nil, fmt.Errorf("unknown injection action %q", action)
	}
	return &ContentGuard{action: action, patterns: defaultGuardPatterns()}, nil
}

func (g *ContentGuard) Action() string { return g.action }

// Scan returns the names of the patterns text matches.
func (g *ContentGuard) Scan(text string) []string {
	if text == "" {
		return nil
	}
	var matches []string
	if strings.ContainsRune(text, 0) {
		matches = append(matches, "null_bytes")
	}
	for _, gp := range g.patterns {
		if gp.pattern.MatchString(text) {
			matches = append(matches, gp.name)
		}
	}
	return matches
}

func defaultGuardPatterns() []guardPattern {
	return []guardPattern{
		{
			name:    "ignore_instructions",
			pattern: regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above|earlier|preceding)\s+(instructions?|rules?|prompts?|directives?|guidelines?)`),
		},
		{
			name:    "role_override",
			pattern: regexp.MustCompile(`(?i)(you are now|from now on you are|pretend you are|act as if you are)\s+`),
		},
		{
			name:    "system_tags",
			pattern: regexp.MustCompile(`(?i)</?system>|\[SYSTEM\]|\[INST\]|<<SYS>>|<\|im_start\|>system`),
		},
		{
			name:    "instruction_injection",
			pattern: regexp.MustCompile(`(?i)(new instructions?:|override:|system prompt:|<\|system\|>)`),
		},
		{
			name:    "delimiter_escape",
			pattern: regexp.MustCompile(`(?i)(end of system|begin user input|</?(instructions?|rules|prompt|context)>)`),
		},
	}
}
