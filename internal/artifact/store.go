// Package artifact names, persists and locates synthesized audio artifacts
// and their metadata records.
package artifact

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/tts-cache/internal/core"
)

// FingerprintLength is the number of hex characters of the text digest kept
// in an artifact key.
const FingerprintLength = 8

// Store couples a blob backend for audio bytes with a record backend for
// per-content metadata.
type Store struct {
	blobs     core.BlobStore
	records   core.RecordStore
	extension string
	urlPrefix string
}

// NewStore returns a Store that names files with extension (without the dot)
// and publishes them under urlPrefix.
func NewStore(blobs core.BlobStore, records core.RecordStore, extension, urlPrefix string) *Store {
	return &Store{
		blobs:     blobs,
		records:   records,
		extension: strings.TrimPrefix(extension, "."),
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}
}

// Fingerprint returns the first eight hex characters of the MD5 digest of
// normalizedText.
func Fingerprint(normalizedText string) string {
	sum := md5.Sum([]byte(normalizedText)) //nolint:gosec // see import

	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// DeriveKey returns contentID + "_" + Fingerprint(normalizedText).
func DeriveKey(contentID, normalizedText string) string {
	return contentID + "_" + Fingerprint(normalizedText)
}

// FileName returns the stored file name for key.
func (s *Store) FileName(key string) string {
	return key + "." + s.extension
}

// URL returns the public URL for key.
func (s *Store) URL(key string) string {
	return s.urlPrefix + "/" + s.FileName(key)
}

// Write persists data under key. Writing identical bytes again is harmless.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	err := s.blobs.Upload(ctx, s.FileName(key), data)
	if err != nil {
		return fmt.Errorf("%w: write artifact %s: %w", core.ErrStorage, key, err)
	}

	return nil
}

// Exists reports whether an artifact is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.blobs.Exists(ctx, s.FileName(key))
	if err != nil {
		return false, fmt.Errorf("%w: stat artifact %s: %w", core.ErrStorage, key, err)
	}

	return exists, nil
}

// Remove deletes the artifact stored under key.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.blobs.Delete(ctx, s.FileName(key))
	if err != nil {
		return fmt.Errorf("%w: remove artifact %s: %w", core.ErrStorage, key, err)
	}

	return nil
}

// LoadRecord returns the metadata record for contentID. A missing record
// yields an error matching core.ErrNotFound.
func (s *Store) LoadRecord(ctx context.Context, contentID string) (*core.Artifact, error) {
	record, err := s.records.Get(ctx, contentID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: load record %s: %w", core.ErrStorage, contentID, err)
	}

	return record, nil
}

// SaveRecord persists record, replacing any earlier one for the same id.
func (s *Store) SaveRecord(ctx context.Context, record *core.Artifact) error {
	err := s.records.Put(ctx, record)
	if err != nil {
		return fmt.Errorf("%w: save record %s: %w", core.ErrStorage, record.ContentID, err)
	}

	return nil
}
