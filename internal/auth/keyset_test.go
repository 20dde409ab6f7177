package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jwksServer serves a mutable key set and counts fetches.
type jwksServer struct {
	*httptest.Server
	mu   sync.Mutex
	keys []jose.JSONWebKey
	hits atomic.Int32
	fail atomic.Bool
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	s := &jwksServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: s.keys})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) publish(keys ...jose.JSONWebKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return k
}

func publicJWK(k *rsa.PrivateKey, kid string) jose.JSONWebKey {
	return jose.JSONWebKey{Key: &k.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}
}

func TestRemoteKeySet_CachesByKid(t *testing.T) {
	srv := newJWKSServer(t)
	k1 := newRSAKey(t)
	srv.publish(publicJWK(k1, "k1"))
	ks := NewRemoteKeySet(srv.URL)

	key, err := ks.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.True(t, k1.PublicKey.Equal(key))

	_, err = ks.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestRemoteKeySet_RefetchesOnRotation(t *testing.T) {
	srv := newJWKSServer(t)
	k1, k2 := newRSAKey(t), newRSAKey(t)
	srv.publish(publicJWK(k1, "k1"))
	ks := NewRemoteKeySet(srv.URL, WithMinRefetchInterval(0))

	_, err := ks.Key(context.Background(), "k1")
	require.NoError(t, err)

	srv.publish(publicJWK(k2, "k2"))
	key, err := ks.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.True(t, k2.PublicKey.Equal(key))
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestRemoteKeySet_ThrottlesUnknownKid(t *testing.T) {
	srv := newJWKSServer(t)
	srv.publish(publicJWK(newRSAKey(t), "k1"))
	ks := NewRemoteKeySet(srv.URL, WithMinRefetchInterval(time.Hour))

	_, err := ks.Key(context.Background(), "k1")
	require.NoError(t, err)

	_, err = ks.Key(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.EqualValues(t, 1, srv.hits.Load(), "unknown kid inside the interval must not refetch")

	now := time.Now().Add(2 * time.Hour)
	ks.now = func() time.Time { return now }
	_, err = ks.Key(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestRemoteKeySet_FetchFailure(t *testing.T) {
	srv := newJWKSServer(t)
	srv.fail.Store(true)
	ks := NewRemoteKeySet(srv.URL)

	_, err := ks.Key(context.Background(), "k1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownKey)
}

func TestRemoteKeySet_FailedFetchDoesNotThrottle(t *testing.T) {
	srv := newJWKSServer(t)
	k1 := newRSAKey(t)
	srv.publish(publicJWK(k1, "k1"))
	srv.fail.Store(true)
	ks := NewRemoteKeySet(srv.URL, WithMinRefetchInterval(time.Hour))

	_, err := ks.Key(context.Background(), "k1")
	require.Error(t, err)

	srv.fail.Store(false)
	key, err := ks.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.True(t, k1.PublicKey.Equal(key))
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestRemoteKeySet_FetchSurvivesCancelledCaller(t *testing.T) {
	srv := newJWKSServer(t)
	k1 := newRSAKey(t)
	srv.publish(publicJWK(k1, "k1"))
	ks := NewRemoteKeySet(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	key, err := ks.Key(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, k1.PublicKey.Equal(key))

	_, err = ks.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestRemoteKeySet_HonoursClientTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})
	ks := NewRemoteKeySet(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	start := time.Now()
	_, err := ks.Key(context.Background(), "k1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
