package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/tts-cache/internal/config"
	"github.com/book-expert/tts-cache/internal/core"
	"github.com/book-expert/tts-cache/internal/metastore"
	"github.com/book-expert/tts-cache/internal/objectstore"
	"github.com/nats-io/nats.go"
)

func newBlobStore(cfg *config.Config, jetstreamContext nats.JetStreamContext) (core.BlobStore, error) {
	switch cfg.Storage.ArtifactBackend {
	case config.BackendNATS:
		store, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.ArtifactBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact bucket: %w", err)
		}

		return store, nil
	case config.BackendFilesystem:
		store, err := objectstore.NewFSObjectStore(cfg.Storage.PublicDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open artifact directory: %w", err)
		}

		return store, nil
	case config.BackendMemory:
		return objectstore.NewMemoryObjectStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown artifact backend %q", config.ErrInvalidConfig, cfg.Storage.ArtifactBackend)
	}
}

// newRecordStore returns the configured record store and a func releasing it.
func newRecordStore(cfg *config.Config, jetstreamContext nats.JetStreamContext) (core.RecordStore, func() error, error) {
	noop := func() error { return nil }
	ttl := time.Duration(cfg.NATS.MetadataTTLSeconds) * time.Second

	switch cfg.Storage.MetadataBackend {
	case config.BackendNATS:
		store, err := metastore.NewNatsKVStore(jetstreamContext, cfg.NATS.MetadataBucket, ttl)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open metadata bucket: %w", err)
		}

		return store, noop, nil
	case config.BackendSQLite:
		store, err := metastore.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open metadata database: %w", err)
		}

		return store, store.Close, nil
	case config.BackendMemory:
		return metastore.NewMemoryStore(ttl), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown metadata backend %q", config.ErrInvalidConfig, cfg.Storage.MetadataBackend)
	}
}

// statusCounter is implemented by record stores that can summarize themselves.
type statusCounter interface {
	CountByStatus(ctx context.Context) (map[core.Status]int, error)
}

// describeRecords summarizes stored records by status. Backends that cannot
// count yield "".
func describeRecords(ctx context.Context, records core.RecordStore) (string, error) {
	counter, ok := records.(statusCounter)
	if !ok {
		return "", nil
	}

	counts, err := counter.CountByStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count records: %w", err)
	}

	statuses := []core.Status{core.StatusPending, core.StatusGenerating, core.StatusCompleted, core.StatusFailed}
	parts := make([]string, 0, len(statuses))

	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, counts[status]))
	}

	return strings.Join(parts, " "), nil
}
