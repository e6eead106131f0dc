// Package metastore provides core.RecordStore implementations: a NATS
// JetStream key-value bucket, a SQLite table, and an in-memory map.
package metastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
)

// NatsKVStore keeps artifact records in a JetStream key-value bucket keyed by
// content id. Only the latest revision of each record is retained.
type NatsKVStore struct {
	bucket string
	kv     nats.KeyValue
}

// NewNatsKVStore binds to bucketName, creating it when missing. A positive
// ttl expires records that have not been rewritten within that window.
func NewNatsKVStore(jetstreamContext nats.JetStreamContext, bucketName string, ttl time.Duration) (*NatsKVStore, error) {
	kv, err := jetstreamContext.KeyValue(bucketName)
	if err == nil {
		return &NatsKVStore{bucket: bucketName, kv: kv}, nil
	}

	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to bind key-value bucket '%s': %w", bucketName, err)
	}

	kv, err = jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucketName,
		Description: "Text-to-speech artifact records by content id.",
		History:     1,
		TTL:         ttl,
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value bucket '%s': %w", bucketName, err)
	}

	return &NatsKVStore{bucket: bucketName, kv: kv}, nil
}

// Get returns the record for contentID or core.ErrNotFound.
func (s *NatsKVStore) Get(_ context.Context, contentID string) (*core.Artifact, error) {
	entry, err := s.kv.Get(contentID)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, fmt.Errorf("record '%s': %w", contentID, core.ErrNotFound)
		}

		return nil, fmt.Errorf("failed to get record '%s' from bucket '%s': %w", contentID, s.bucket, err)
	}

	var record core.Artifact

	unmarshalErr := sonic.Unmarshal(entry.Value(), &record)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to decode record '%s': %w", contentID, unmarshalErr)
	}

	return &record, nil
}

// Put replaces the record stored under record.ContentID.
func (s *NatsKVStore) Put(_ context.Context, record *core.Artifact) error {
	data, marshalErr := sonic.Marshal(record)
	if marshalErr != nil {
		return fmt.Errorf("failed to encode record '%s': %w", record.ContentID, marshalErr)
	}

	_, putErr := s.kv.Put(record.ContentID, data)
	if putErr != nil {
		return fmt.Errorf("failed to put record '%s' to bucket '%s': %w", record.ContentID, s.bucket, putErr)
	}

	return nil
}

// Delete removes the record for contentID. A missing record is not an error.
func (s *NatsKVStore) Delete(_ context.Context, contentID string) error {
	err := s.kv.Delete(contentID)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete record '%s' from bucket '%s': %w", contentID, s.bucket, err)
	}

	return nil
}
