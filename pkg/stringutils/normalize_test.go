// Copyright (c) 2025-2026, the Graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNormalizer(t *testing.T) {
	t.Parallel()

	transform := func(s string) string {
		return strings.ToUpper(s)
	}

	normalizer := NewNormalizer(64, transform)
	assert.NotNil(t, normalizer)
	assert.NotNil(t, normalizer.cache)
	assert.NotNil(t, normalizer.transform)
}

func TestNewDefaultNormalizer(t *testing.T) {
	t.Parallel()

	normalizer := NewDefaultNormalizer()
	assert.NotNil(t, normalizer)
}

func TestNormalizerNormalize(t *testing.T) {
	t.Parallel()

	t.Run("default normalizer", func(t *testing.T) {
		t.Parallel()

		normalizer := NewDefaultNormalizer()

		result := normalizer.Normalize("  HELLO  ")
		assert.Equal(t, "hello", result)

		result = normalizer.Normalize("  HELLO  ")
		assert.Equal(t, "hello", result)
	})

	t.Run("custom transform", func(t *testing.T) {
		t.Parallel()

		transform := func(s string) string {
			return strings.ToUpper(strings.TrimSpace(s))
		}

		normalizer := NewNormalizer(64, transform)

		result := normalizer.Normalize("  hello  ")
		assert.Equal(t, "HELLO", result)

		result = normalizer.Normalize("  hello  ")
		assert.Equal(t, "HELLO", result)
	})

	t.Run("different keys", func(t *testing.T) {
		t.Parallel()

		normalizer := NewDefaultNormalizer()

		result1 := normalizer.Normalize("HELLO")
		result2 := normalizer.Normalize("WORLD")

		assert.Equal(t, "hello", result1)
		assert.Equal(t, "world", result2)
	})

	t.Run("generic types", func(t *testing.T) {
		t.Parallel()

		transform := func(n int) string {
			switch n {
			case 1:
				return "one"
			case 2:
				return "two"
			default:
				return "other"
			}
		}

		normalizer := NewNormalizer[int, string](64, transform)

		assert.Equal(t, "one", normalizer.Normalize(1))
		assert.Equal(t, "two", normalizer.Normalize(2))
		assert.Equal(t, "other", normalizer.Normalize(99))
	})
}

func TestNormalizerClear(t *testing.T) {
	t.Parallel()

	callCount := 0
	transform := func(s string) string {
		callCount++
		return strings.ToLower(s)
	}

	normalizer := NewNormalizer(64, transform)

	_ = normalizer.Normalize("HELLO")
	assert.Equal(t, 1, callCount)

	_ = normalizer.Normalize("HELLO")
	assert.Equal(t, 1, callCount)

	normalizer.Clear("HELLO")

	_ = normalizer.Normalize("HELLO")
	assert.Equal(t, 2, callCount)
}

func TestDefaultNormalizerStaticInstance(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, DefaultNormalizer)

	result := DefaultNormalizer.Normalize("  TEST  ")
	assert.Equal(t, "test", result)
}
