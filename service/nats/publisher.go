package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/memotransfer/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing submission events to NATS.
type Publisher interface {
	// PublishSubmission publishes a finished submission attempt to
	// "submissions.{sender}".
	PublishSubmission(ctx context.Context, event *SubmissionEvent) error

	// PublishLog publishes a client log entry to "txlogs.{sender}".
	PublishLog(ctx context.Context, event *LogEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for submission events.
	StreamName = "SUBMISSIONS"

	// SubmissionSubjectPrefix and LogSubjectPrefix are the stream's subject roots.
	SubmissionSubjectPrefix = "submissions"
	LogSubjectPrefix        = "txlogs"

	// UnknownSender stands in for the sender token of log entries without one.
	UnknownSender = "unknown"

	// StreamRetention is how long messages are retained (30 days by default).
	StreamRetention = 30 * 24 * time.Hour
)

// StreamSubjects is the subject pattern set for the stream.
var StreamSubjects = []string{
	SubmissionSubjectPrefix + ".*",
	LogSubjectPrefix + ".*",
}

// SubmissionSubject returns the subject a submission from sender is published on.
func SubmissionSubject(sender string) string {
	return fmt.Sprintf("%s.%s", SubmissionSubjectPrefix, subjectToken(sender))
}

// LogSubject returns the subject a log entry from sender is published on.
func LogSubject(sender string) string {
	return fmt.Sprintf("%s.%s", LogSubjectPrefix, subjectToken(sender))
}

// subjectToken keeps a single subject token: base58 addresses pass through,
// anything empty or containing separators or wildcards becomes UnknownSender.
func subjectToken(s string) string {
	if s == "" {
		return UnknownSender
	}
	for _, r := range s {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return UnknownSender
		}
	}
	return s
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists. If metrics is nil, no
// metrics will be recorded.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	// Connect to NATS
	nc, err := nats.Connect(natsURL,
		nats.Name("memotransfer-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	// Ensure stream exists
	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Transfer submission outcomes and client transaction logs",
		Subjects:    StreamSubjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	_, err = p.js.CreateStream(ctx, streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishSubmission publishes a single submission event.
func (p *JetStreamPublisher) PublishSubmission(ctx context.Context, event *SubmissionEvent) error {
	event.PublishedAt = time.Now().UTC()
	subject := SubmissionSubject(event.Sender)

	if err := p.publish(ctx, SubmissionSubjectPrefix, subject, event); err != nil {
		return fmt.Errorf("failed to publish submission: %w", err)
	}

	p.logger.DebugContext(ctx, "published submission event",
		"subject", subject,
		"signature", event.Signature,
		"outcome", event.Outcome,
	)
	return nil
}

// PublishLog publishes a single log entry.
func (p *JetStreamPublisher) PublishLog(ctx context.Context, event *LogEvent) error {
	event.PublishedAt = time.Now().UTC()
	subject := LogSubject(event.Sender)

	if err := p.publish(ctx, LogSubjectPrefix, subject, event); err != nil {
		return fmt.Errorf("failed to publish transaction log: %w", err)
	}

	p.logger.DebugContext(ctx, "published transaction log", "subject", subject)
	return nil
}

// publish marshals v and sends it on subject. Metrics are labeled by the
// subject prefix to keep sender addresses out of label values.
func (p *JetStreamPublisher) publish(ctx context.Context, prefix, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(prefix, status, time.Since(start).Seconds())
	}
	return err
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
