package names

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/logging/fields"
)

const requestTimeout = 10 * time.Second

// Resolver maps validator identities to display names through an external
// registry. Each identity is looked up at most once per process lifetime: the
// attempted set is never cleared, so a failed or empty lookup pins the
// identity string itself as the name until restart. The set grows unbounded,
// which is acceptable for validator-set cardinality.
type Resolver struct {
	logger   *zap.Logger
	client   *http.Client
	endpoint string

	cache *gocache.Cache

	mu        sync.Mutex
	attempted map[string]struct{}
}

type registryResponse struct {
	Domain string `json:"domain"`
}

func NewResolver(logger *zap.Logger, endpoint string) *Resolver {
	return &Resolver{
		logger:    logger,
		client:    &http.Client{Timeout: requestTimeout},
		endpoint:  endpoint,
		cache:     gocache.New(gocache.NoExpiration, 0),
		attempted: make(map[string]struct{}),
	}
}

// Seed preloads known display names, bypassing the lookup path entirely.
func (r *Resolver) Seed(known map[string]string) {
	for identity, name := range known {
		if name != "" {
			r.cache.Set(identity, name, gocache.NoExpiration)
		}
	}
}

// Resolve returns the display name for an identity, falling back to the
// identity itself. Network failures are absorbed, never surfaced.
func (r *Resolver) Resolve(ctx context.Context, identity string) string {
	if identity == "" {
		return identity
	}
	if name, ok := r.cache.Get(identity); ok {
		return name.(string)
	}

	r.mu.Lock()
	if _, done := r.attempted[identity]; done {
		r.mu.Unlock()
		return identity
	}
	r.attempted[identity] = struct{}{}
	r.mu.Unlock()

	if r.endpoint == "" {
		return identity
	}

	name := r.lookup(ctx, identity)
	if name == "" {
		return identity
	}
	r.cache.Set(identity, name, gocache.NoExpiration)
	return name
}

func (r *Resolver) lookup(ctx context.Context, identity string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/"+identity, nil)
	if err != nil {
		r.logger.Debug("could not create name lookup request", zap.Error(err))
		return ""
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("name lookup failed", fields.MasterKey(identity), zap.Error(err))
		return ""
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("name lookup rejected", fields.MasterKey(identity), zap.Int("status", resp.StatusCode))
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ""
	}

	var parsed registryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.logger.Debug("could not parse name lookup response", fields.MasterKey(identity), zap.Error(err))
		return ""
	}
	return parsed.Domain
}
