package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/gomemory/internal/tracing"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

// Registry manages tool registration and execution.
type Registry struct {
	tools       map[string]Tool
	mu          sync.RWMutex
	rateLimiter *ToolRateLimiter // nil = no rate limiting
	scrubber    *Scrubber        // nil = no scrubbing
	guard       *ContentGuard    // nil = no injection scanning
	logger      *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:    make(map[string]Tool),
		scrubber: &Scrubber{},
		logger:   logger,
	}
}

// SetRateLimiter enables per-tool rate limiting.
func (r *Registry) SetRateLimiter(rl *ToolRateLimiter) {
	r.rateLimiter = rl
}

// SetScrubber replaces the credential scrubber; nil disables scrubbing.
func (r *Registry) SetScrubber(s *Scrubber) {
	r.scrubber = s
}

// SetContentGuard enables injection scanning of GuardedTool arguments.
func (r *Registry) SetContentGuard(g *ContentGuard) {
	r.guard = g
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	tools := r.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name. Errors are reported inside the Result; the
// error text is scrubbed of credentials.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) *Result {
	tool, ok := r.Get(name)
	if !ok {
		return ErrorResult(protocol.ErrValidation, "unknown tool: "+name)
	}
	if args == nil {
		args = map[string]any{}
	}

	if r.rateLimiter != nil {
		if err := r.rateLimiter.Allow(name); err != nil {
			return FromError(err)
		}
	}

	if blocked := r.checkGuard(tool, args); blocked != nil {
		return blocked
	}

	ctx, span := tracing.Start(ctx, "tool."+name, attribute.String("tool.name", name))
	start := time.Now()
	result := tool.Execute(ctx, args)
	duration := time.Since(start)
	tracing.End(span, result.Err)

	if !result.Success && r.scrubber != nil {
		result.Error = r.scrubber.Scrub(result.Error)
	}

	if result.Success {
		r.logger.Debug("tool executed", "tool", name, "duration_ms", duration.Milliseconds())
	} else {
		r.logger.Warn("tool failed", "tool", name, "duration_ms", duration.Milliseconds(), "code", result.Code, "error", result.Error)
	}
	return result
}

// checkGuard scans guarded arguments and returns a failure result when the
// guard blocks the call.
func (r *Registry) checkGuard(tool Tool, args map[string]any) *Result {
	gt, ok := tool.(GuardedTool)
	if r.guard == nil || !ok {
		return nil
	}
	for _, key := range gt.GuardedArgs() {
		text, _ := args[key].(string)
		matches := r.guard.Scan(text)
		if len(matches) == 0 {
			continue
		}
		switch r.guard.Action() {
		case GuardBlock:
			r.logger.Warn("memory write blocked by injection guard", "tool", tool.Name(), "arg", key, "patterns", matches)
			return ErrorResult(protocol.ErrValidation, fmt.Sprintf("%s rejected: matches injection patterns %v", key, matches))
		case GuardWarn:
			r.logger.Warn("possible prompt injection in memory write", "tool", tool.Name(), "arg", key, "patterns", matches)
		default:
			r.logger.Info("possible prompt injection in memory write", "tool", tool.Name(), "arg", key, "patterns", matches)
		}
	}
	return nil
}
