package store

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrBadSignature is returned when a signed URL fails verification.
var ErrBadSignature = errors.New("store: bad signature")

// FSBlobStore implements BlobStore on a local directory. Signed URLs carry an
// HMAC token so the daemon can hand out time-limited download links without
// exposing the directory.
type FSBlobStore struct {
	root   string
	secret []byte
	now    func() time.Time
}

func NewFSBlobStore(root string, secret []byte) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FSBlobStore{root: root, secret: secret, now: time.Now}, nil
}

func (s *FSBlobStore) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSBlobStore) Upload(ctx context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	return nil
}

func (s *FSBlobStore) Download(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FSBlobStore) Remove(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// SignedURL returns a file URL whose query string carries an expiry and an
// HMAC over key and expiry.
func (s *FSBlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(filepath.Join(s.root, key)),
		RawQuery: url.Values{
			"key":     {key},
			"expires": {strconv.FormatInt(expires, 10)},
			"sig":     {s.sign(key, expires)},
		}.Encode(),
	}
	return u.String(), nil
}

// Verify checks a signed URL and returns the blob key it grants access to.
func (s *FSBlobStore) Verify(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse signed url: %w", err)
	}
	q := u.Query()
	key := q.Get("key")
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	if !hmac.Equal([]byte(q.Get("sig")), []byte(s.sign(key, expires))) {
		return "", ErrBadSignature
	}
	if s.now().Unix() > expires {
		return "", fmt.Errorf("signed url expired at %d", expires)
	}
	return key, nil
}

func (s *FSBlobStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\x00%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
