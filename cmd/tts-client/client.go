package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
	"github.com/book-expert/tts-cache/internal/worker"
	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
)

// ErrRemote wraps an error reported by the service.
var ErrRemote = errors.New("service error")

// subjects names the service's request subjects.
type subjects struct {
	generate string
	status   string
	speak    string
}

// requester sends typed requests to the service.
type requester struct {
	natsConnection *nats.Conn
	subjects       subjects
	timeout        time.Duration
	userID         string
	tenantID       string
}

func (r *requester) generate(contentID, text string, format core.Format) (*worker.GenerateReply, error) {
	var reply worker.GenerateReply

	err := r.roundTrip(r.subjects.generate, worker.GenerateRequest{
		Header:    worker.NewHeader(r.userID, r.tenantID),
		ContentID: contentID,
		Text:      text,
		Format:    format,
	}, &reply)
	if err != nil {
		return nil, err
	}

	if reply.ErrorCode != "" {
		return &reply, fmt.Errorf("%w (%s): %s", ErrRemote, reply.ErrorCode, reply.Error)
	}

	return &reply, nil
}

func (r *requester) status(contentID string) (*worker.StatusReply, error) {
	var reply worker.StatusReply

	err := r.roundTrip(r.subjects.status, worker.StatusRequest{
		Header:    worker.NewHeader(r.userID, r.tenantID),
		ContentID: contentID,
	}, &reply)
	if err != nil {
		return nil, err
	}

	if reply.ErrorCode != "" {
		return &reply, fmt.Errorf("%w (%s): %s", ErrRemote, reply.ErrorCode, reply.Error)
	}

	return &reply, nil
}

// speak returns the audio bytes and their content type.
func (r *requester) speak(text string) ([]byte, string, error) {
	data, err := sonic.Marshal(worker.SpeakRequest{
		Header: worker.NewHeader(r.userID, r.tenantID),
		Text:   text,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request: %w", err)
	}

	msg, err := r.natsConnection.Request(r.subjects.speak, data, r.timeout)
	if err != nil {
		return nil, "", fmt.Errorf("request on %s failed: %w", r.subjects.speak, err)
	}

	if code := msg.Header.Get(worker.HeaderError); code != "" {
		var reply worker.ErrorReply

		unmarshalErr := sonic.Unmarshal(msg.Data, &reply)
		if unmarshalErr != nil {
			return nil, "", fmt.Errorf("%w (%s)", ErrRemote, code)
		}

		return nil, "", fmt.Errorf("%w (%s): %s", ErrRemote, code, reply.Error)
	}

	return msg.Data, msg.Header.Get(worker.HeaderContentType), nil
}

func (r *requester) roundTrip(subject string, request, reply any) error {
	data, err := sonic.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	msg, err := r.natsConnection.Request(subject, data, r.timeout)
	if err != nil {
		return fmt.Errorf("request on %s failed: %w", subject, err)
	}

	err = sonic.Unmarshal(msg.Data, reply)
	if err != nil {
		return fmt.Errorf("failed to decode reply from %s: %w", subject, err)
	}

	return nil
}
