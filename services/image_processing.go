package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// DefaultMaxUploadBytes is the per-file limit for photos and garments.
const DefaultMaxUploadBytes int64 = 5 << 20

var (
	ErrNotAnImage     = errors.New("file is not an image")
	ErrEmptyImage     = errors.New("file is empty")
	ErrImageTooBig    = errors.New("file exceeds the upload limit")
	ErrInvalidDataURL = errors.New("invalid image data URL")
)

// DetectImageMIME sniffs the content type. The declared type is trusted only
// when sniffing is inconclusive, which is the case for HEIC/HEIF.
func DetectImageMIME(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}
	if sniffed == "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mediaType, "image/") {
			return mediaType, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotAnImage, sniffed)
}

// ValidateImage checks size and type and returns the MIME type to store.
func ValidateImage(data []byte, declared string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooBig, len(data))
	}
	return DetectImageMIME(data, declared)
}

// DecodeDataURL accepts "data:image/png;base64,..." and returns the decoded
// bytes with the declared media type.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	header, payload, found := strings.Cut(strings.TrimSpace(dataURL), ",")
	if !found || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, "", ErrInvalidDataURL
	}
	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, mediaType, nil
}

// ExtensionForMIME picks the object key suffix for a stored image.
func ExtensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	}
	return ""
}
