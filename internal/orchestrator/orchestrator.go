// Package orchestrator runs the text-to-speech cache lifecycle: it answers
// playback status queries, generates and stores audio for content that has
// none (or whose text changed), and serves one-shot speech for short text.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/artifact"
	"github.com/book-expert/tts-cache/internal/config"
	"github.com/book-expert/tts-cache/internal/core"
	"github.com/book-expert/tts-cache/internal/tts/audio"
	"github.com/book-expert/tts-cache/internal/tts/text"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// MaxContentIDLength bounds content ids, which become storage keys.
const MaxContentIDLength = 128

var contentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds the pipeline limits.
type Config struct {
	ChunkMaxBytes         int
	SingleRequestMaxBytes int
	MaxConcurrency        int
	SecondsPerChar        float64
	// RequestTimeout bounds each provider call. Zero leaves it to the provider.
	RequestTimeout time.Duration
	Retention      string
}

// ConfigFrom extracts the pipeline limits from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ChunkMaxBytes:         cfg.TTS.ChunkMaxBytes,
		SingleRequestMaxBytes: cfg.TTS.SingleRequestMaxBytes,
		MaxConcurrency:        cfg.TTS.MaxConcurrency,
		SecondsPerChar:        cfg.TTS.SecondsPerChar,
		RequestTimeout:        time.Duration(cfg.TTS.TimeoutSeconds) * time.Second,
		Retention:             cfg.Storage.Retention,
	}
}

// Playback is the answer to a status query.
type Playback struct {
	ContentID       string
	Status          core.Status
	URL             string
	DurationSeconds float64
	Error           string
}

// Result describes a completed artifact.
type Result struct {
	ContentID       string
	Key             string
	URL             string
	DurationSeconds float64
	ChunkCount      int
	FileSizeBytes   int64
	// Cached is true when no synthesis was needed.
	Cached bool
}

// Orchestrator coordinates normalization, chunking, synthesis, assembly and
// storage. It is safe for concurrent use.
type Orchestrator struct {
	store      *artifact.Store
	synth      core.Synthesizer
	normalizer *text.Normalizer
	splitter   *text.Splitter
	assembler  *audio.Assembler
	log        *logger.Logger
	cfg        Config

	flights singleflight.Group
	locks   *keyedMutex
	now     func() time.Time
}

// New creates an orchestrator. It fails when the limits are unusable.
func New(store *artifact.Store, synth core.Synthesizer, cfg Config, log *logger.Logger) (*Orchestrator, error) {
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("%w: max concurrency must be positive, got %d", core.ErrValidation, cfg.MaxConcurrency)
	}

	if cfg.SingleRequestMaxBytes < cfg.ChunkMaxBytes {
		return nil, fmt.Errorf("%w: single request budget %d is below chunk budget %d",
			core.ErrValidation, cfg.SingleRequestMaxBytes, cfg.ChunkMaxBytes)
	}

	splitter, err := text.NewSplitter(cfg.ChunkMaxBytes)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		store:      store,
		synth:      synth,
		normalizer: text.NewNormalizer(),
		splitter:   splitter,
		assembler:  audio.NewAssembler(audio.Format(synth.Format())),
		log:        log,
		cfg:        cfg,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// ValidateContentID checks that id is usable as a storage key.
func ValidateContentID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: content id is required", core.ErrValidation)
	}

	if len(id) > MaxContentIDLength {
		return fmt.Errorf("%w: content id exceeds %d bytes", core.ErrValidation, MaxContentIDLength)
	}

	if !contentIDPattern.MatchString(id) {
		return fmt.Errorf("%w: content id %q may only contain letters, digits, '-' and '_'", core.ErrValidation, id)
	}

	return nil
}

// Query reports the playback state for contentID. A record that claims
// completion while its artifact is missing is reported as pending; the
// stored record is left untouched so the next Generate repairs it.
func (o *Orchestrator) Query(ctx context.Context, contentID string) (Playback, error) {
	err := ValidateContentID(contentID)
	if err != nil {
		return Playback{}, err
	}

	record, err := o.store.LoadRecord(ctx, contentID)
	if err != nil {
		return Playback{}, err
	}

	playback := Playback{
		ContentID: contentID,
		Status:    record.Status,
		Error:     record.Error,
	}

	if record.Status != core.StatusCompleted {
		return playback, nil
	}

	exists, err := o.store.Exists(ctx, record.Key)
	if err != nil {
		return Playback{}, err
	}

	if !exists {
		o.log.Warn("Record for %s is completed but artifact %s is missing; reporting pending", contentID, record.Key)

		playback.Status = core.StatusPending

		return playback, nil
	}

	playback.URL = record.URL
	playback.DurationSeconds = record.DurationSeconds

	return playback, nil
}

// Generate makes sure an artifact exists for the current text of content and
// returns it. Concurrent calls for the same text share one attempt.
func (o *Orchestrator) Generate(ctx context.Context, content core.ContentText) (Result, error) {
	err := ValidateContentID(content.ContentID)
	if err != nil {
		return Result{}, err
	}

	format := content.Format
	if format == "" {
		format = core.FormatHTML
	}

	normalized := o.normalizer.Normalize(content.Markup, format)
	if normalized == "" {
		return Result{}, fmt.Errorf("%w: content %s has no speakable text", core.ErrValidation, content.ContentID)
	}

	key := artifact.DeriveKey(content.ContentID, normalized)

	flight := o.flights.DoChan(key, func() (any, error) {
		return o.generate(context.WithoutCancel(ctx), content.ContentID, key, normalized)
	})

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for artifact %s: %w", key, ctx.Err())
	case outcome := <-flight:
		if outcome.Err != nil {
			return Result{}, outcome.Err
		}

		result, _ := outcome.Val.(Result)
		if outcome.Shared {
			o.log.Info("Joined in-flight generation of %s", key)
		}

		return result, nil
	}
}

// Speak synthesizes short text in a single provider call without touching
// any stored state.
func (o *Orchestrator) Speak(ctx context.Context, markup string) ([]byte, error) {
	normalized := o.normalizer.Normalize(markup, core.FormatHTML)
	if normalized == "" {
		return nil, fmt.Errorf("%w: text has no speakable content", core.ErrValidation)
	}

	if len(normalized) > o.cfg.SingleRequestMaxBytes {
		return nil, fmt.Errorf("%w: text is %d bytes, single requests allow at most %d",
			core.ErrValidation, len(normalized), o.cfg.SingleRequestMaxBytes)
	}

	audioData, err := o.synthesize(ctx, normalized)
	if err != nil {
		o.log.Error("Single-request synthesis failed: %v", err)

		return nil, fmt.Errorf("%w: synthesis failed", core.ErrProvider)
	}

	return audioData, nil
}

// Format returns the audio container extension of produced artifacts.
func (o *Orchestrator) Format() string {
	return o.synth.Format()
}

func (o *Orchestrator) generate(ctx context.Context, contentID, key, normalized string) (Result, error) {
	unlock := o.locks.Lock(contentID)
	defer unlock()

	previous, err := o.store.LoadRecord(ctx, contentID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return Result{}, err
	}

	if previous != nil && previous.Status == core.StatusCompleted && previous.Key == key {
		exists, existsErr := o.store.Exists(ctx, key)
		if existsErr != nil {
			return Result{}, existsErr
		}

		if exists {
			return resultFromRecord(previous, true), nil
		}

		o.log.Warn("Artifact %s is missing; regenerating", key)
	}

	previous, err = o.settleAbandoned(ctx, previous)
	if err != nil {
		return Result{}, err
	}

	record := &core.Artifact{
		ContentID:   contentID,
		Fingerprint: artifact.Fingerprint(normalized),
		Key:         key,
		Status:      core.StatusGenerating,
		UpdatedAt:   o.now(),
	}

	err = o.transition(ctx, previous, record)
	if err != nil {
		return Result{}, err
	}

	result, err := o.produce(ctx, record, normalized)
	if err != nil {
		o.markFailed(ctx, record, err)

		return Result{}, err
	}

	o.applyRetention(ctx, previous, key)

	return result, nil
}

// settleAbandoned fails a record left in generating by an attempt that can
// no longer finish. The per-id lock is held, so no live attempt in this
// process owns it.
func (o *Orchestrator) settleAbandoned(ctx context.Context, previous *core.Artifact) (*core.Artifact, error) {
	if previous == nil || previous.Status != core.StatusGenerating {
		return previous, nil
	}

	o.log.Warn("Record for %s was left generating since %s; marking failed",
		previous.ContentID, humanize.Time(previous.UpdatedAt))

	abandoned := *previous
	abandoned.Status = core.StatusFailed
	abandoned.Error = "generation abandoned"
	abandoned.UpdatedAt = o.now()

	err := o.transition(ctx, previous, &abandoned)
	if err != nil {
		return nil, err
	}

	return &abandoned, nil
}

func (o *Orchestrator) produce(ctx context.Context, record *core.Artifact, normalized string) (Result, error) {
	chunks := o.splitter.Split(normalized)

	o.log.Info("Generating %s: %s of text in %d chunk(s)",
		record.Key, humanize.Bytes(uint64(len(normalized))), len(chunks))

	parts, err := o.synthesizeAll(ctx, chunks)
	if err != nil {
		return Result{}, err
	}

	assembled, err := o.assembler.Assemble(parts)
	if err != nil {
		o.log.Error("Failed to assemble %s: %v", record.Key, err)

		return Result{}, fmt.Errorf("%w: audio assembly failed", core.ErrProvider)
	}

	err = o.store.Write(ctx, record.Key, assembled)
	if err != nil {
		o.log.Error("Failed to store %s: %v", record.Key, err)

		return Result{}, fmt.Errorf("%w: artifact write failed", core.ErrStorage)
	}

	completed := *record
	completed.Status = core.StatusCompleted
	completed.URL = o.store.URL(record.Key)
	completed.DurationSeconds = audio.EstimateDuration(utf8.RuneCountInString(normalized), o.cfg.SecondsPerChar)
	completed.FileSizeBytes = int64(len(assembled))
	completed.ChunkCount = len(chunks)
	completed.GeneratedAt = o.now()
	completed.UpdatedAt = completed.GeneratedAt

	err = o.transition(ctx, record, &completed)
	if err != nil {
		return Result{}, err
	}

	o.log.Info("Stored %s (%s, ~%.1fs)", completed.URL, humanize.Bytes(uint64(len(assembled))), completed.DurationSeconds)

	return resultFromRecord(&completed, false), nil
}

// synthesizeAll calls the provider once per chunk with bounded parallelism
// and returns the outputs in chunk order. The first failure cancels the rest.
func (o *Orchestrator) synthesizeAll(ctx context.Context, chunks []text.Chunk) ([][]byte, error) {
	parts := make([][]byte, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.MaxConcurrency)

	for _, chunk := range chunks {
		group.Go(func() error {
			audioData, err := o.synthesize(groupCtx, chunk.Text)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", chunk.Index+1, len(chunks), err)
			}

			parts[chunk.Index] = audioData

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		o.log.Error("Synthesis failed: %v", err)

		return nil, fmt.Errorf("%w: synthesis failed", core.ErrProvider)
	}

	return parts, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, chunk string) ([]byte, error) {
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	return o.synth.Synthesize(ctx, chunk)
}

// transition persists next after checking that the status change from
// current is legal. A nil current is treated as pending.
func (o *Orchestrator) transition(ctx context.Context, current, next *core.Artifact) error {
	from := core.StatusPending
	if current != nil {
		from = current.Status
	}

	if !from.CanTransition(next.Status) {
		return fmt.Errorf("illegal status transition %s -> %s for %s", from, next.Status, next.ContentID)
	}

	return o.store.SaveRecord(ctx, next)
}

func (o *Orchestrator) markFailed(ctx context.Context, record *core.Artifact, cause error) {
	failed := *record
	failed.Status = core.StatusFailed
	failed.Error = cause.Error()
	failed.UpdatedAt = o.now()

	err := o.transition(ctx, record, &failed)
	if err != nil {
		o.log.Error("Failed to record failure of %s: %v", record.Key, err)

		return
	}

	o.log.Warn("Generation of %s failed: %v", record.Key, cause)
}

// applyRetention removes the artifact superseded by key when the policy
// keeps only the latest one. Failures are logged, never returned.
func (o *Orchestrator) applyRetention(ctx context.Context, previous *core.Artifact, key string) {
	if o.cfg.Retention == config.RetentionKeepAll || previous == nil {
		return
	}

	if previous.Key == "" || previous.Key == key {
		return
	}

	err := o.store.Remove(ctx, previous.Key)
	if err != nil {
		o.log.Warn("Failed to remove superseded artifact %s: %v", previous.Key, err)

		return
	}

	o.log.Info("Removed superseded artifact %s", previous.Key)
}

func resultFromRecord(record *core.Artifact, cached bool) Result {
	return Result{
		ContentID:       record.ContentID,
		Key:             record.Key,
		URL:             record.URL,
		DurationSeconds: record.DurationSeconds,
		ChunkCount:      record.ChunkCount,
		FileSizeBytes:   record.FileSizeBytes,
		Cached:          cached,
	}
}
