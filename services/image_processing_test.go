package services

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestDetectImageMIME(t *testing.T) {
	mimeType, err := DetectImageMIME(pngHeader, "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)

	mimeType, err = DetectImageMIME([]byte{0x00, 0x00, 0x00, 0x18, 0x66, 0x74, 0x79, 0x70, 0x68, 0x65, 0x69, 0x63}, "image/heic")
	require.NoError(t, err)
	assert.Equal(t, "image/heic", mimeType)

	_, err = DetectImageMIME([]byte("hello world"), "image/png")
	assert.ErrorIs(t, err, ErrNotAnImage)

	_, err = DetectImageMIME(nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestValidateImageSizeLimit(t *testing.T) {
	_, err := ValidateImage(pngHeader, "", int64(len(pngHeader)))
	assert.NoError(t, err)

	_, err = ValidateImage(pngHeader, "", int64(len(pngHeader))-1)
	assert.ErrorIs(t, err, ErrImageTooBig)
}

func TestDecodeDataURL(t *testing.T) {
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	data, mediaType, err := DecodeDataURL(encoded)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", mediaType)

	_, _, err = DecodeDataURL("image/png;base64,AAAA")
	assert.ErrorIs(t, err, ErrInvalidDataURL)

	_, _, err = DecodeDataURL("data:image/png;base64,@@@")
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}

func TestExtensionForMIME(t *testing.T) {
	assert.Equal(t, ".jpg", ExtensionForMIME("image/jpeg"))
	assert.Equal(t, "", ExtensionForMIME("image/x-unknown"))
}
