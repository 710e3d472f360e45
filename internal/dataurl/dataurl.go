// Package dataurl converts between raw image bytes and base64 data URLs.
package dataurl

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrMalformed = errors.New("malformed data URL")
	ErrNotImage  = errors.New("content is not an image")
)

// IsDataURL reports whether s looks like a data URL
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// Encode returns a base64 data URL for data using its sniffed MIME type
func Encode(data []byte) string {
	mime := mimetype.Detect(data).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode parses a base64 data URL and returns the payload with its MIME type.
// The declared type is ignored in favour of the sniffed one.
func Decode(s string) ([]byte, string, error) {
	if !IsDataURL(s) {
		return nil, "", ErrMalformed
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", ErrMalformed
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrMalformed
	}
	return data, mimetype.Detect(data).String(), nil
}

// DecodeImage is Decode restricted to image payloads
func DecodeImage(s string) ([]byte, error) {
	data, mime, err := Decode(s)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, ErrNotImage
	}
	return data, nil
}
