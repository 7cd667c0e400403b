package qrraster

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	opts := Options{SizePx: 256, MarginModules: 2, Level: LevelMedium}

	t.Run("deterministic for identical input", func(t *testing.T) {
		first, err := Encode("https://verify.example.com/v?hash=abc", opts)
		require.NoError(t, err)
		second, err := Encode("https://verify.example.com/v?hash=abc", opts)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("different payloads differ", func(t *testing.T) {
		first, err := Encode("payload-one", opts)
		require.NoError(t, err)
		second, err := Encode("payload-two", opts)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("output is a square png with integer-scaled modules", func(t *testing.T) {
		raw, err := Encode("hello", opts)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(raw))
		require.NoError(t, err)
		bounds := img.Bounds()
		assert.Equal(t, bounds.Dx(), bounds.Dy())
		assert.LessOrEqual(t, bounds.Dx(), opts.SizePx)
	})

	t.Run("empty payload is rejected", func(t *testing.T) {
		_, err := Encode("", opts)
		assert.Error(t, err)
	})

	t.Run("zero size falls back to a usable default", func(t *testing.T) {
		raw, err := Encode("hello", Options{Level: LevelLow})
		require.NoError(t, err)
		assert.NotEmpty(t, raw)
	})
}
