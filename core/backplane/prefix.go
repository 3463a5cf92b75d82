package backplane

import (
	"context"
	"strings"
	"time"
)

// Prefixed namespaces every key of the wrapped backplane.
// Channels are passed through unchanged.
type Prefixed struct {
	Backplane
	prefix string
}

// WithPrefix wraps b so all keys live under prefix. An empty prefix returns b unchanged.
func WithPrefix(b Backplane, prefix string) Backplane {
	if prefix == "" {
		return b
	}
	return &Prefixed{Backplane: b, prefix: prefix}
}

// Prefix returns the key namespace.
func (p *Prefixed) Prefix() string { return p.prefix }

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Backplane.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.Backplane.Set(ctx, p.prefix+key, value, ttl)
}

func (p *Prefixed) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.Backplane.Replace(ctx, p.prefix+key, value, ttl)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.Backplane.Delete(ctx, p.prefix+key)
}

// Keys returns matching keys with the namespace stripped.
func (p *Prefixed) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.Backplane.Keys(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, p.prefix)
	}
	return keys, nil
}
