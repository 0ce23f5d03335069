// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultNormalizerSize = 4096

// TransformFunc transforms K to V.
type TransformFunc[K comparable, V any] func(K) V

// Normalizer caches transformed results behind a bounded LRU so repeated
// normalization of the same torrent/release name (hot in matching loops)
// does not repeatedly pay for unicode transforms.
type Normalizer[K comparable, V any] struct {
	cache     *lru.Cache[K, V]
	transform TransformFunc[K, V]
}

// NewNormalizer returns a normalizer with the given cache size and transform.
func NewNormalizer[K comparable, V any](size int, transform TransformFunc[K, V]) *Normalizer[K, V] {
	cache, err := lru.New[K, V](size)
	if err != nil {
		// size <= 0; fall back to a minimal cache rather than failing construction.
		cache, _ = lru.New[K, V](1)
	}
	return &Normalizer[K, V]{cache: cache, transform: transform}
}

// NewDefaultNormalizer returns a normalizer using the default cache size and
// the canonical (trim + lowercase) transform.
func NewDefaultNormalizer() *Normalizer[string, string] {
	return NewNormalizer(defaultNormalizerSize, InternNormalized)
}

// Normalize returns the transformed value, populating the cache on a miss.
func (n *Normalizer[K, V]) Normalize(key K) V {
	if cached, ok := n.cache.Get(key); ok {
		return cached
	}

	transformed := n.transform(key)
	n.cache.Add(key, transformed)
	return transformed
}

// Clear removes a cached entry.
func (n *Normalizer[K, V]) Clear(key K) {
	n.cache.Remove(key)
}

// DefaultNormalizer is a statically allocated default normalizer for strings.
var DefaultNormalizer = NewDefaultNormalizer()
