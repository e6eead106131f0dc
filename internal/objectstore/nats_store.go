// Package objectstore provides core.BlobStore implementations backed by a NATS
// JetStream object store, a local public directory, or process memory.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsObjectStore keeps artifact blobs in a JetStream object store bucket.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNatsObjectStore binds to bucket, creating it on first use.
func NewNatsObjectStore(jetstreamContext nats.JetStreamContext, bucket string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.ObjectStore(bucket)
	if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrBucketNotFound) {
		store, err = jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "synthesized audio artifacts",
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			// Another instance created it between the two calls.
			store, err = jetstreamContext.ObjectStore(bucket)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open object store bucket '%s': %w", bucket, err)
	}

	return &NatsObjectStore{bucket: bucket, store: store}, nil
}

// Download returns the object stored under key.
func (n *NatsObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := n.store.GetBytes(key, nats.Context(ctx))
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, ErrObjectNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return data, nil
}

// Upload stores data under key, replacing any earlier object of that name.
func (n *NatsObjectStore) Upload(ctx context.Context, key string, data []byte) error {
	_, err := n.store.PutBytes(key, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}

// Exists reports whether a non-deleted object is stored under key.
func (n *NatsObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := n.store.GetInfo(key, nats.Context(ctx))
	if errors.Is(err, nats.ErrObjectNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", key, n.bucket, err)
	}

	return true, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (n *NatsObjectStore) Delete(_ context.Context, key string) error {
	err := n.store.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete object '%s' from bucket '%s': %w", key, n.bucket, err)
	}

	return nil
}
