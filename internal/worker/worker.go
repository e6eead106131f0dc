// Package worker serves the text-to-speech cache over NATS request/reply.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/tts-cache/internal/core"
	"github.com/book-expert/tts-cache/internal/orchestrator"
	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
)

const defaultHandleTimeout = 120 * time.Second

// Service is the cache API the worker exposes.
type Service interface {
	Generate(ctx context.Context, content core.ContentText) (orchestrator.Result, error)
	Query(ctx context.Context, contentID string) (orchestrator.Playback, error)
	Speak(ctx context.Context, text string) ([]byte, error)
	Format() string
}

// Options configures the subscriptions of a NatsWorker.
type Options struct {
	GenerateSubject string
	StatusSubject   string
	SpeakSubject    string
	QueueGroup      string
	// HandleTimeout bounds one request. Zero uses 120s.
	HandleTimeout time.Duration
}

// NatsWorker answers generate, status and speak requests. Generate and speak
// requests each run on their own goroutine; Run waits for them on shutdown.
type NatsWorker struct {
	natsConnection *nats.Conn
	opts           Options
	service        Service
	log            *logger.Logger
	inFlight       sync.WaitGroup
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(natsConnection *nats.Conn, opts Options, service Service, log *logger.Logger) *NatsWorker {
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = defaultHandleTimeout
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		opts:           opts,
		service:        service,
		log:            log,
	}
}

// Run subscribes to all subjects and blocks until ctx is cancelled. It then
// drains the subscriptions and waits for in-flight requests to finish.
func (w *NatsWorker) Run(ctx context.Context) error {
	handlers := map[string]nats.MsgHandler{
		w.opts.GenerateSubject: w.async(w.handleGenerate),
		w.opts.StatusSubject:   w.handleStatus,
		w.opts.SpeakSubject:    w.async(w.handleSpeak),
	}

	subscriptions := make([]*nats.Subscription, 0, len(handlers))

	for subject, handler := range handlers {
		sub, err := w.natsConnection.QueueSubscribe(subject, w.opts.QueueGroup, handler)
		if err != nil {
			w.drain(subscriptions)

			return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
		}

		subscriptions = append(subscriptions, sub)
	}

	flushErr := w.natsConnection.Flush()
	if flushErr != nil {
		w.drain(subscriptions)

		return fmt.Errorf("failed to flush subscriptions: %w", flushErr)
	}

	w.log.Info("Listening on %s, %s and %s (queue %s)",
		w.opts.GenerateSubject, w.opts.StatusSubject, w.opts.SpeakSubject, w.opts.QueueGroup)

	<-ctx.Done()

	return w.drain(subscriptions)
}

func (w *NatsWorker) drain(subscriptions []*nats.Subscription) error {
	var errs []error

	for _, sub := range subscriptions {
		drainErr := sub.Drain()
		if drainErr != nil {
			errs = append(errs, fmt.Errorf("failed to drain subscription %s: %w", sub.Subject, drainErr))
		}
	}

	// Drain returns before queued callbacks have run; wait for them and for
	// the goroutines they started.
	for _, sub := range subscriptions {
		for sub.IsValid() {
			time.Sleep(10 * time.Millisecond)
		}
	}

	w.inFlight.Wait()

	return errors.Join(errs...)
}

func (w *NatsWorker) async(handler nats.MsgHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		w.inFlight.Add(1)

		go func() {
			defer w.inFlight.Done()

			handler(msg)
		}()
	}
}

func (w *NatsWorker) handleGenerate(msg *nats.Msg) {
	var request GenerateRequest

	err := sonic.Unmarshal(msg.Data, &request)
	if err != nil {
		w.respondDecodeError(msg, err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.HandleTimeout)
	defer cancel()

	result, err := w.service.Generate(ctx, core.ContentText{
		ContentID: request.ContentID,
		Markup:    request.Text,
		Format:    request.Format,
	})

	reply := GenerateReply{
		Header:    replyHeader(request.Header),
		ContentID: request.ContentID,
	}

	if err != nil {
		w.log.Error("Generate %s for workflow %s failed: %v", request.ContentID, request.Header.WorkflowID, err)

		reply.Error = err.Error()
		reply.ErrorCode = core.ErrorCode(err)
	} else {
		reply.URL = result.URL
		reply.DurationSeconds = result.DurationSeconds
		reply.ChunkCount = result.ChunkCount
		reply.FileSizeBytes = result.FileSizeBytes
		reply.Cached = result.Cached
	}

	w.respondJSON(msg, reply)
}

func (w *NatsWorker) handleStatus(msg *nats.Msg) {
	var request StatusRequest

	err := sonic.Unmarshal(msg.Data, &request)
	if err != nil {
		w.respondDecodeError(msg, err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.HandleTimeout)
	defer cancel()

	reply := StatusReply{
		Header:    replyHeader(request.Header),
		ContentID: request.ContentID,
	}

	playback, err := w.service.Query(ctx, request.ContentID)
	if err != nil {
		reply.Error = err.Error()
		reply.ErrorCode = core.ErrorCode(err)
	} else {
		reply.Status = playback.Status
		reply.URL = playback.URL
		reply.DurationSeconds = playback.DurationSeconds
		reply.Error = playback.Error
	}

	w.respondJSON(msg, reply)
}

func (w *NatsWorker) handleSpeak(msg *nats.Msg) {
	var request SpeakRequest

	err := sonic.Unmarshal(msg.Data, &request)
	if err != nil {
		w.respondDecodeError(msg, err)

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.HandleTimeout)
	defer cancel()

	audioData, err := w.service.Speak(ctx, request.Text)
	if err != nil {
		w.log.Error("Speak for workflow %s failed: %v", request.Header.WorkflowID, err)
		w.respondError(msg, request.Header, err)

		return
	}

	reply := nats.NewMsg(msg.Reply)
	reply.Header.Set(HeaderContentType, "audio/"+w.service.Format())
	reply.Data = audioData

	respondErr := msg.RespondMsg(reply)
	if respondErr != nil {
		w.log.Error("Failed to send %d bytes of audio for workflow %s: %v",
			len(audioData), request.Header.WorkflowID, respondErr)
	}
}

func (w *NatsWorker) respondDecodeError(msg *nats.Msg, err error) {
	w.log.Error("Failed to decode request on %s: %v", msg.Subject, err)
	w.respondError(msg, events.EventHeader{}, fmt.Errorf("%w: malformed request", core.ErrValidation))
}

func (w *NatsWorker) respondError(msg *nats.Msg, header events.EventHeader, err error) {
	data, marshalErr := sonic.Marshal(ErrorReply{
		Header:    replyHeader(header),
		Error:     err.Error(),
		ErrorCode: core.ErrorCode(err),
	})
	if marshalErr != nil {
		w.log.Error("Failed to marshal error reply: %v", marshalErr)

		return
	}

	reply := nats.NewMsg(msg.Reply)
	reply.Header.Set(HeaderError, core.ErrorCode(err))
	reply.Data = data

	respondErr := msg.RespondMsg(reply)
	if respondErr != nil {
		w.log.Error("Failed to publish error reply on %s: %v", msg.Subject, respondErr)
	}
}

func (w *NatsWorker) respondJSON(msg *nats.Msg, reply any) {
	data, err := sonic.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply on %s: %v", msg.Subject, err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish reply on %s: %v", msg.Subject, err)
	}
}
