// Package datauri encodes and parses RFC 2397 base64 data URIs.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	scheme       = "data:"
	base64Marker = ";base64,"
)

var ErrMalformed = errors.New("malformed data uri")

// URI is a decoded data URI.
type URI struct {
	MIMEType string
	Data     []byte
}

// Encode returns data as a base64 data URI with the given MIME type.
func Encode(mimeType string, data []byte) string {
	return Wrap(mimeType, base64.StdEncoding.EncodeToString(data))
}

// Wrap builds a data URI around an already base64-encoded payload.
func Wrap(mimeType, encoded string) string {
	return fmt.Sprintf("%s%s%s%s", scheme, mimeType, base64Marker, encoded)
}

// IsDataURI reports whether s looks like a base64 data URI. It does not
// decode the payload.
func IsDataURI(s string) bool {
	if !strings.HasPrefix(s, scheme) {
		return false
	}
	return strings.Contains(s, base64Marker)
}

// Split returns the MIME type and the still-encoded payload of s.
func Split(s string) (mimeType, encoded string, err error) {
	if !strings.HasPrefix(s, scheme) {
		return "", "", fmt.Errorf("%w: missing %q prefix", ErrMalformed, scheme)
	}
	rest := s[len(scheme):]
	idx := strings.Index(rest, base64Marker)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	mimeType = rest[:idx]
	encoded = rest[idx+len(base64Marker):]
	if mimeType == "" {
		return "", "", fmt.Errorf("%w: empty media type", ErrMalformed)
	}
	if encoded == "" {
		return "", "", fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	return mimeType, encoded, nil
}

// Validate checks that s is a base64 data URI whose payload decodes, without
// keeping the decoded bytes. It returns the MIME type and encoded payload.
func Validate(s string) (mimeType, encoded string, err error) {
	mimeType, encoded, err = Split(s)
	if err != nil {
		return "", "", err
	}
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(encoded))
	if _, err := io.Copy(io.Discard, dec); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return mimeType, encoded, nil
}

// Parse decodes s into its MIME type and raw bytes.
func Parse(s string) (*URI, error) {
	mimeType, encoded, err := Split(s)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &URI{MIMEType: mimeType, Data: data}, nil
}
