// Package respcache caches completed LLM responses keyed by the fingerprint
// of the request that produced them, with a content-sensitive TTL: shorter
// for responses flagged as containing sensitive content, longer otherwise.
//
// The underlying store is grounded on the otter/v2 W-TinyLFU cache used by
// eugener-gandalf's internal/cache.Memory; this package generalizes that
// entry/TTL wrapper pattern to carry the dual-TTL policy required here
// instead of a single fixed default.
package respcache

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/maypok86/otter/v2"

	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

const (
	// SensitiveTTL is applied to responses the caller marks as containing
	// sensitive content.
	SensitiveTTL = 60 * time.Second

	// DefaultTTL is applied to all other responses.
	DefaultTTL = 10 * time.Minute
)

// entry wraps a cached response with its absolute expiry time.
type entry struct {
	response  llm.CompletionResponse
	expiresAt time.Time
}

// Cache is a size-bounded, TTL-aware response cache. Safe for concurrent use.
type Cache struct {
	store *otter.Cache[string, entry]
}

// New creates a [Cache] holding at most maxSize entries. Per-entry TTL is
// tracked in entry.expiresAt rather than via otter's own expiry calculator,
// since the TTL varies per entry based on content sensitivity rather than
// being fixed at cache-construction time.
func New(maxSize int) (*Cache, error) {
	if maxSize <= 0 {
		maxSize = 10_000
	}
	store, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize: maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("respcache: create cache: %w", err)
	}
	return &Cache{store: store}, nil
}

// Get returns the cached response for key if present and not expired.
func (c *Cache) Get(key string) (llm.CompletionResponse, bool) {
	e, ok := c.store.GetIfPresent(key)
	if !ok {
		return llm.CompletionResponse{}, false
	}
	if time.Now().After(e.expiresAt) {
		c.store.Invalidate(key)
		return llm.CompletionResponse{}, false
	}
	return e.response, true
}

// Set stores response under key with a TTL chosen from containsSensitive:
// [SensitiveTTL] when true, [DefaultTTL] otherwise.
func (c *Cache) Set(key string, response llm.CompletionResponse, containsSensitive bool) {
	ttl := DefaultTTL
	if containsSensitive {
		ttl = SensitiveTTL
	}
	c.store.Set(key, entry{response: response, expiresAt: time.Now().Add(ttl)})
}

// Delete evicts key if present.
func (c *Cache) Delete(key string) {
	c.store.Invalidate(key)
}

// Purge clears the entire cache.
func (c *Cache) Purge() {
	c.store.InvalidateAll()
}

// Key deterministically fingerprints a completion request for cache lookup.
// It hashes the model, max tokens, temperature, and role-tagged message
// content with xxhash — a fast non-cryptographic hash used here in place of
// BLAKE3 (no Go BLAKE3 binding appears anywhere in this codebase's
// dependency pack; xxhash is already present transitively via the
// Prometheus client and needs no new third-party surface). Collision
// resistance at cryptographic strength is not required: a false cache hit
// only risks serving a stale-but-still-valid-shaped completion for an
// extremely similar request, not a security boundary violation.
func Key(req llm.CompletionRequest) string {
	h := xxhash.New()
	_, _ = h.WriteString(req.Model)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(req.MaxTokens))
	_, _ = h.Write(buf[:])

	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(req.Temperature))
	_, _ = h.Write(buf[:])

	for _, m := range req.Messages {
		_, _ = h.Write([]byte{roleTag(m.Role)})
		_, _ = h.WriteString(m.Content)
	}

	sum := h.Sum64()
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], sum)
	return encodeHex(out[:])
}

func roleTag(r llm.Role) byte {
	switch r {
	case llm.RoleSystem:
		return 0
	case llm.RoleUser:
		return 1
	case llm.RoleAssistant:
		return 2
	case llm.RoleTool:
		return 3
	default:
		return 255
	}
}

const hexDigits = "0123456789abcdef"

func encodeHex(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
