package llm

import (
	"context"
	"fmt"
	"time"

	"intellidoc-backend/internal/shared/cache"
	"intellidoc-backend/internal/shared/telemetry"
	"intellidoc-backend/internal/shared/util"
)

// CachedCompleter serves repeated identical prompts from a cache. Only
// successful, non-empty completions are stored; cache failures fall through
// to the provider.
type CachedCompleter struct {
	Next  Completer
	Cache cache.Cache
	TTL   time.Duration
}

func (c *CachedCompleter) Provider() string {
	p, _ := describe(c.Next)
	return p
}

func (c *CachedCompleter) Model() string {
	_, m := describe(c.Next)
	return m
}

func (c *CachedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if c.Cache == nil {
		return c.Next.Complete(ctx, req)
	}
	key := c.key(req)
	if val, ok, err := c.Cache.Get(ctx, key); err != nil {
		telemetry.Warn("llm.cache_get_failed", map[string]any{"error": err.Error()})
	} else if ok {
		telemetry.Debug("llm.cache_hit", map[string]any{"operation": string(req.Operation)})
		return val, nil
	}

	out, err := c.Next.Complete(ctx, req)
	if err != nil || out == "" {
		return out, err
	}
	if err := c.Cache.Set(ctx, key, out, c.TTL); err != nil {
		telemetry.Warn("llm.cache_set_failed", map[string]any{"error": err.Error()})
	}
	return out, nil
}

func (c *CachedCompleter) key(req Request) string {
	provider, model := describe(c.Next)
	return "llm:" + util.SHA256Hex(fmt.Sprintf("%s|%s|%s|%d|%.2f|%s",
		req.Operation, provider, model, req.MaxTokens, req.Temperature, req.Prompt))
}
