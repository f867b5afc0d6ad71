package anthropic

// CachedSystem wraps a system prompt in a single block with a prompt-cache
// breakpoint. Reusing the same text across calls (one research profile over
// many profile pages) lets later calls read the prefix from cache.
func CachedSystem(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}
