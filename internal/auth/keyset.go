package auth

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrUnknownKey is returned when a key id is not present in the published set.
var ErrUnknownKey = errors.New("unknown signing key")

// KeySource resolves a JWS key id to a verification key.
type KeySource interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

const (
	defaultKeyFetchTimeout = 5 * time.Second
	defaultMinRefetch      = time.Minute
	defaultKeyCacheSize    = 32
	defaultKeyCacheTTL     = 24 * time.Hour
	maxKeySetResponseBytes = 1 << 20
)

// RemoteKeySet fetches a JSON Web Key Set over HTTP and caches its keys by
// key id. A lookup for an id that is not cached triggers a re-fetch, so keys
// rotated in by the issuer are picked up without a restart. Re-fetches are
// rate limited by a minimum interval.
type RemoteKeySet struct {
	url        string
	client     *http.Client
	cache      *expirable.LRU[string, crypto.PublicKey]
	minRefetch time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex // serializes fetches
	lastFetch time.Time
}

// KeySetOption customizes a RemoteKeySet.
type KeySetOption func(*RemoteKeySet)

// WithHTTPClient replaces the default client, which has a 5s timeout.
func WithHTTPClient(c *http.Client) KeySetOption {
	return func(ks *RemoteKeySet) { ks.client = c }
}

// WithMinRefetchInterval sets how often an unknown key id may trigger a fetch.
func WithMinRefetchInterval(d time.Duration) KeySetOption {
	return func(ks *RemoteKeySet) { ks.minRefetch = d }
}

// WithKeySetLogger sets the logger used for fetch diagnostics.
func WithKeySetLogger(l *slog.Logger) KeySetOption {
	return func(ks *RemoteKeySet) { ks.logger = l }
}

// NewRemoteKeySet returns a key set backed by the JWKS document at url.
func NewRemoteKeySet(url string, opts ...KeySetOption) *RemoteKeySet {
	ks := &RemoteKeySet{
		url:        url,
		client:     &http.Client{Timeout: defaultKeyFetchTimeout},
		cache:      expirable.NewLRU[string, crypto.PublicKey](defaultKeyCacheSize, nil, defaultKeyCacheTTL),
		minRefetch: defaultMinRefetch,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks
}

// Key returns the public key for kid, fetching the set when kid is unknown.
func (ks *RemoteKeySet) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := ks.cache.Get(kid); ok {
		return key, nil
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	// Another caller may have fetched while we waited.
	if key, ok := ks.cache.Get(kid); ok {
		return key, nil
	}
	if !ks.lastFetch.IsZero() && ks.now().Sub(ks.lastFetch) < ks.minRefetch {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	if err := ks.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := ks.cache.Get(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
}

// refresh replaces the cached keys with the current published set. The
// caller holds ks.mu. The fetch outlives a cancelled caller and is bounded by
// the client timeout; only a successful fetch starts the refetch interval.
func (ks *RemoteKeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, ks.url, nil)
	if err != nil {
		return fmt.Errorf("build key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch key set: unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetResponseBytes)).Decode(&set); err != nil {
		return fmt.Errorf("decode key set: %w", err)
	}

	ks.lastFetch = ks.now()
	ks.cache.Purge()
	loaded := 0
	for _, k := range set.Keys {
		if k.KeyID == "" || !k.Valid() || !k.IsPublic() {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		ks.cache.Add(k.KeyID, k.Key)
		loaded++
	}
	ks.logger.Info("identity key set refreshed", slog.String("url", ks.url), slog.Int("keys", loaded))
	return nil
}
