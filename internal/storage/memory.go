package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

const memoryScheme = "mem"

// MemoryStore is an in-memory implementation of the ObjectStore interface.
// Signed URLs use the mem:// scheme and only resolve against the store that
// issued them. This implementation is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Put stores size bytes read from r under key, replacing any previous object.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

// SignedURL returns a mem:// URL for key that expires after ttl.
func (m *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	return signURL(memoryScheme, "/"+key, m.now().Add(ttl)), nil
}

// Fetch returns the object behind a URL issued by SignedURL.
func (m *MemoryStore) Fetch(ctx context.Context, signedURL string) (io.ReadCloser, error) {
	p, err := verifyURL(signedURL, memoryScheme, m.now())
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(p, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Object returns the stored bytes and content type for key.
func (m *MemoryStore) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// signURL builds <scheme>://<path>?expires=<unix>.
func signURL(scheme, p string, expires time.Time) string {
	u := url.URL{
		Scheme:   scheme,
		Path:     p,
		RawQuery: url.Values{"expires": {fmt.Sprint(expires.Unix())}}.Encode(),
	}
	return u.String()
}

// verifyURL checks scheme and expiry and returns the path.
func verifyURL(raw, scheme string, now time.Time) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing signed url: %w", err)
	}
	if u.Scheme != scheme {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	var expires int64
	if _, err := fmt.Sscan(u.Query().Get("expires"), &expires); err != nil {
		return "", fmt.Errorf("signed url has no expiry")
	}
	if now.Unix() > expires {
		return "", fmt.Errorf("signed url expired")
	}
	return u.Path, nil
}

// Compile-time check that MemoryStore implements shield.ObjectStore interface
var _ shield.ObjectStore = (*MemoryStore)(nil)
