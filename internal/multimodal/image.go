package multimodal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nikhilbhutani/photopoet/internal/config"
	"github.com/nikhilbhutani/photopoet/pkg/datauri"
)

var (
	// ErrRead means the image bytes could not be opened or fully read.
	ErrRead = errors.New("image read failed")
	// ErrInvalidImage means the reference itself is unusable (bad shape,
	// not an image, browser-only handle).
	ErrInvalidImage  = errors.New("invalid image")
	ErrImageTooLarge = errors.New("image too large")
)

// ImageInput references an image. Exactly one source should be set.
// DataURI and Base64 are durable encodings; URL, FilePath and Reader are
// transient and get read into memory by Normalize.
type ImageInput struct {
	DataURI  string    `json:"data_uri,omitempty"`
	Base64   string    `json:"base64,omitempty"`
	URL      string    `json:"url,omitempty"`
	FilePath string    `json:"file_path,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
	Reader   io.Reader `json:"-"`
	Filename string    `json:"-"` // used only for extension-based MIME guessing
}

// ImageInputFromRef classifies a string reference from the API boundary.
func ImageInputFromRef(ref string) ImageInput {
	if datauri.IsDataURI(ref) {
		return ImageInput{DataURI: ref}
	}
	return ImageInput{URL: ref}
}

// Normalizer turns any ImageInput into a self-contained base64 data URI.
type Normalizer struct {
	maxBytes     int64
	allowPrivate bool
	httpClient   *http.Client
}

func NewNormalizer(cfg config.ImageConfig) *Normalizer {
	n := &Normalizer{
		maxBytes:     cfg.MaxBytes,
		allowPrivate: cfg.AllowPrivateHosts,
	}

	// Addresses are checked on the socket being dialled, after resolution,
	// so a hostname cannot pass the check and then rebind to a private IP.
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: n.dialControl}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	n.httpClient = &http.Client{
		Timeout:   60 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return n.checkURL(req.URL)
		},
	}
	return n
}

// Normalize returns a durable data URI for in. Durable inputs are returned
// without re-encoding; transient ones are drained before returning.
func (n *Normalizer) Normalize(ctx context.Context, in ImageInput) (string, error) {
	if sources := countSources(in); sources != 1 {
		return "", fmt.Errorf("%w: exactly one of data_uri, base64, url, file_path or upload is required (got %d)", ErrInvalidImage, sources)
	}

	switch {
	case in.DataURI != "":
		mimeType, encoded, err := datauri.Split(in.DataURI)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		if !isImageMIME(mimeType) {
			return "", fmt.Errorf("%w: media type %q is not an image", ErrInvalidImage, mimeType)
		}
		if n.encodedTooLarge(encoded) {
			return "", fmt.Errorf("%w: exceeds %d bytes", ErrImageTooLarge, n.maxBytes)
		}
		if _, _, err := datauri.Validate(in.DataURI); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
		return in.DataURI, nil

	case in.Base64 != "":
		return n.wrapBase64(in)

	case in.Reader != nil:
		return n.encode(in.Reader, in.MimeType, filepath.Ext(in.Filename))

	case in.FilePath != "":
		f, err := os.Open(in.FilePath)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrRead, err)
		}
		defer f.Close()
		return n.encode(f, in.MimeType, filepath.Ext(in.FilePath))

	default:
		return n.fetch(ctx, in)
	}
}

func countSources(in ImageInput) int {
	n := 0
	for _, set := range []bool{in.DataURI != "", in.Base64 != "", in.URL != "", in.FilePath != "", in.Reader != nil} {
		if set {
			n++
		}
	}
	return n
}

func (n *Normalizer) wrapBase64(in ImageInput) (string, error) {
	encoded := strings.TrimSpace(in.Base64)
	if n.encodedTooLarge(encoded) {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrImageTooLarge, n.maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 payload: %w", ErrInvalidImage, err)
	}
	mimeType, err := resolveMIME(in.MimeType, data, "")
	if err != nil {
		return "", err
	}
	return datauri.Wrap(mimeType, encoded), nil
}

// encodedTooLarge estimates the decoded size without decoding. DecodedLen
// over-counts by up to two bytes of padding.
func (n *Normalizer) encodedTooLarge(encoded string) bool {
	return int64(base64.StdEncoding.DecodedLen(len(encoded))) > n.maxBytes+2
}

func (n *Normalizer) encode(r io.Reader, mimeHint, ext string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, n.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRead, err)
	}
	if int64(len(data)) > n.maxBytes {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrImageTooLarge, n.maxBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", ErrRead)
	}

	mimeType, err := resolveMIME(mimeHint, data, ext)
	if err != nil {
		return "", err
	}
	return datauri.Encode(mimeType, data), nil
}

func (n *Normalizer) fetch(ctx context.Context, in ImageInput) (string, error) {
	u, err := url.Parse(in.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if u.Scheme == "blob" {
		return "", fmt.Errorf("%w: blob: URLs only exist inside the browser session; upload the file instead", ErrInvalidImage)
	}
	if err := n.checkURL(u); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: fetch %s: status %d", ErrRead, u.Redacted(), resp.StatusCode)
	}

	mimeHint := in.MimeType
	if mimeHint == "" {
		if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && isImageMIME(mt) {
			mimeHint = mt
		}
	}
	return n.encode(resp.Body, mimeHint, filepath.Ext(u.Path))
}

// checkURL rejects anything but http and https. Address checks happen at
// dial time in dialControl.
func (n *Normalizer) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported URL scheme %q", ErrInvalidImage, u.Scheme)
	}
	return nil
}

// dialControl refuses connections to private, loopback, link-local and
// unspecified addresses unless private hosts are allowed.
func (n *Normalizer) dialControl(network, address string, _ syscall.RawConn) error {
	if n.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: dial %s: not an IP address", ErrInvalidImage, address)
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return fmt.Errorf("%w: restricted address %s", ErrInvalidImage, ip)
	}
	return nil
}

// resolveMIME prefers the explicit hint, then content sniffing, then the
// file extension.
func resolveMIME(hint string, data []byte, ext string) (string, error) {
	if hint != "" {
		if !isImageMIME(hint) {
			return "", fmt.Errorf("%w: media type %q is not an image", ErrInvalidImage, hint)
		}
		return hint, nil
	}
	if sniffed := http.DetectContentType(data); isImageMIME(sniffed) {
		return sniffed, nil
	}
	if byExt := mimeFromExtension(ext); byExt != "" {
		return byExt, nil
	}
	return "", fmt.Errorf("%w: content is not a recognised image", ErrInvalidImage)
}

func isImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func mimeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return ""
	}
}
