// Command tts-service answers generate, status and speak requests over NATS
// and keeps synthesized article audio cached by content fingerprint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/artifact"
	"github.com/book-expert/tts-cache/internal/config"
	"github.com/book-expert/tts-cache/internal/orchestrator"
	"github.com/book-expert/tts-cache/internal/tts"
	"github.com/book-expert/tts-cache/internal/worker"
	"github.com/nats-io/nats.go"
)

const healthCheckTimeout = 10 * time.Second

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "tts-cache-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)

		return err
	}
	defer bootstrapLog.Close()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Configuration rejected: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded, logs continue in %s", cfg.Paths.BaseLogsDir)

	log, err := setupLogger(cfg.Paths.BaseLogsDir, "tts-cache.log")
	if err != nil {
		bootstrapLog.Error("Cannot open service log: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing service log: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("tts-cache"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	blobs, err := newBlobStore(cfg, jetstreamContext)
	if err != nil {
		return err
	}

	records, closeRecords, err := newRecordStore(cfg, jetstreamContext)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := closeRecords()
		if closeErr != nil {
			log.Error("Failed to close record store: %v", closeErr)
		}
	}()

	summary, countErr := describeRecords(ctx, records)
	if countErr != nil {
		log.Warn("Cannot summarize stored records: %v", countErr)
	} else if summary != "" {
		log.Info("Stored records: %s", summary)
	}

	synth, err := tts.NewSynthesizer(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	healthCtx, cancelHealth := context.WithTimeout(ctx, healthCheckTimeout)
	healthErr := tts.CheckHealth(healthCtx, synth)

	cancelHealth()

	if healthErr != nil {
		log.Warn("Speech provider health check failed, continuing: %v", healthErr)
	}

	store := artifact.NewStore(blobs, records, synth.Format(), cfg.Storage.PublicURLPrefix)

	orch, err := orchestrator.New(store, synth, orchestrator.ConfigFrom(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	natsWorker := worker.NewNatsWorker(natsConnection, worker.Options{
		GenerateSubject: cfg.NATS.GenerateSubject,
		StatusSubject:   cfg.NATS.StatusSubject,
		SpeakSubject:    cfg.NATS.SpeakSubject,
		QueueGroup:      cfg.NATS.QueueGroup,
		HandleTimeout:   time.Duration(cfg.NATS.RequestTimeoutSeconds) * time.Second,
	}, orch, log)

	log.System("TTS cache initialized: artifacts on %s, records on %s, provider %s",
		cfg.Storage.ArtifactBackend, cfg.Storage.MetadataBackend, cfg.TTS.Provider)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	log.System("TTS cache stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
