// Package contextmgr trims a conversation down to fit a model's context
// window before it is sent to a provider.
//
// Grounded on ContextManagementService.manage_context in the orchestration
// service this system is modeled on: system messages are kept first, in
// their original order, up to the budget; remaining messages are then
// admitted newest-first so the most recent turns of the conversation
// survive trimming, and the admitted set is finally restored to
// chronological order before being sent. Results are cached briefly since
// the same prefix of a conversation is frequently re-submitted as a user
// continues it.
package contextmgr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/quillmind/orchestrator/internal/tokenize"
	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// roleOverhead is the per-message token cost added on top of raw content
// length for each role, mirroring the chat-formatting overhead the original
// tokenizer applies per message.
var roleOverhead = map[llm.Role]int{
	llm.RoleUser:      4,
	llm.RoleAssistant: 4,
	llm.RoleTool:      6,
	llm.RoleSystem:    4,
}

// cacheTTL is how long a computed context result is reused for an identical
// (messages, budget) pair.
const cacheTTL = 300 * time.Second

// cacheEntry holds a previously computed trim result.
type cacheEntry struct {
	messages  []llm.Message
	expiresAt time.Time
}

// Manager trims conversations to fit within a token budget, caching recent
// results.
type Manager struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New returns a ready-to-use [Manager].
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger, cache: make(map[string]cacheEntry)}
}

// Manage returns the subset of messages that fits within maxContextTokens,
// preferring to keep all system messages and the most recent non-system
// messages. The returned slice is in chronological order.
func (m *Manager) Manage(ctx context.Context, messages []llm.Message, maxContextTokens int) ([]llm.Message, error) {
	if maxContextTokens <= 0 {
		return nil, fmt.Errorf("contextmgr: maxContextTokens must be positive")
	}

	key := cacheKey(messages, maxContextTokens)
	if cached, ok := m.lookup(key); ok {
		return cached, nil
	}

	result := manage(messages, maxContextTokens, m.logger)

	m.store(key, result)
	return result, nil
}

func (m *Manager) lookup(key string) ([]llm.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.messages, true
}

func (m *Manager) store(key string, messages []llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.cache[key] = cacheEntry{messages: messages, expiresAt: now.Add(cacheTTL)}
	for k, e := range m.cache {
		if now.After(e.expiresAt) {
			delete(m.cache, k)
		}
	}
}

// manage implements the two-pass trim: system messages first in original
// order, then non-system messages newest-first, reassembled chronologically.
func manage(messages []llm.Message, budget int, logger *slog.Logger) []llm.Message {
	var systemMsgs, nonSystemMsgs []llm.Message
	var systemIdx, nonSystemIdx []int
	for i, msg := range messages {
		if msg.Role == llm.RoleSystem {
			systemMsgs = append(systemMsgs, msg)
			systemIdx = append(systemIdx, i)
		} else {
			nonSystemMsgs = append(nonSystemMsgs, msg)
			nonSystemIdx = append(nonSystemIdx, i)
		}
	}

	remaining := budget
	keptSystem := make([]bool, len(systemMsgs))
	for i, msg := range systemMsgs {
		cost := messageTokens(msg)
		if cost > remaining {
			logger.Warn("system message too long, truncating context", "index", systemIdx[i])
			continue
		}
		keptSystem[i] = true
		remaining -= cost
	}

	keptNonSystem := make([]bool, len(nonSystemMsgs))
	for i := len(nonSystemMsgs) - 1; i >= 0; i-- {
		cost := messageTokens(nonSystemMsgs[i])
		if cost > remaining {
			logger.Debug("dropping message to fit context budget", "index", nonSystemIdx[i])
			break
		}
		keptNonSystem[i] = true
		remaining -= cost
	}

	final := make([]llm.Message, 0, len(messages))
	si, ni := 0, 0
	for i := range messages {
		if si < len(systemIdx) && systemIdx[si] == i {
			if keptSystem[si] {
				final = append(final, systemMsgs[si])
			}
			si++
		} else if ni < len(nonSystemIdx) && nonSystemIdx[ni] == i {
			if keptNonSystem[ni] {
				final = append(final, nonSystemMsgs[ni])
			}
			ni++
		}
	}
	return final
}

func messageTokens(msg llm.Message) int {
	return tokenize.CountText(msg.Content) + roleOverhead[msg.Role]
}

// OptimalContextSize returns the recommended working budget for a model
// with the given raw context window: 75% of the window, leaving headroom
// for the completion itself and for provider-side formatting overhead.
func OptimalContextSize(contextWindow int) int {
	return (contextWindow * 3) / 4
}

// ValidateFit reports an error if messages would exceed maxContextTokens.
func ValidateFit(messages []llm.Message, maxContextTokens int) error {
	total := 0
	for _, msg := range messages {
		total += messageTokens(msg)
	}
	if total > maxContextTokens {
		return fmt.Errorf("contextmgr: conversation requires %d tokens, exceeds budget of %d", total, maxContextTokens)
	}
	return nil
}

// cacheKey fingerprints a (messages, budget) pair so repeated trims of the
// same conversation prefix can reuse a cached result.
func cacheKey(messages []llm.Message, budget int) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%d|", budget)
	for _, msg := range messages {
		fmt.Fprintf(h, "%s:%d:", msg.Role, len(msg.Content))
		_, _ = h.WriteString(msg.Content)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
