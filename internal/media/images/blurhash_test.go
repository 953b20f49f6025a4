package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(encodePNG(t, 200, 300))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHash_SmallImage(t *testing.T) {
	hash, err := ComputeBlurHash(encodePNG(t, 16, 16))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHash_InvalidData(t *testing.T) {
	_, err := ComputeBlurHash([]byte("not an image"))
	assert.Error(t, err)
}
