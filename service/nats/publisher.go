package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/brojonat/solsweep/service/metrics"
	"github.com/brojonat/solsweep/service/reclaim"
)

// Publisher publishes reclaim and scan events.
type Publisher interface {
	PublishReclaim(ctx context.Context, event *ReclaimEvent) error
	PublishScan(ctx context.Context, event *ScanEvent) error
	Close() error
}

const (
	// StreamName is the name of the JetStream stream for reclaim events.
	StreamName = "RECLAIM"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "reclaim.*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 30 * 24 * time.Hour
)

// Subject returns the subject events for wallet are published to.
func Subject(wallet string) string {
	return "reclaim." + wallet
}

// JetStreamPublisher publishes events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPublisher connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, logger *slog.Logger, m *metrics.Metrics) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("solsweep-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

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

func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)
	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Token account reclaim results and wallet scans",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// PublishReclaim publishes a wallet result event.
func (p *JetStreamPublisher) PublishReclaim(ctx context.Context, event *ReclaimEvent) error {
	return p.publish(ctx, event.Wallet, event)
}

// PublishScan publishes a scan event.
func (p *JetStreamPublisher) PublishScan(ctx context.Context, event *ScanEvent) error {
	return p.publish(ctx, event.Wallet, event)
}

// PublishWalletResult lets the publisher act as a pipeline sink.
func (p *JetStreamPublisher) PublishWalletResult(ctx context.Context, res reclaim.WalletResult) error {
	return p.PublishReclaim(ctx, FromWalletResult(res))
}

func (p *JetStreamPublisher) publish(ctx context.Context, wallet string, event any) error {
	subject := Subject(wallet)
	data, err := json.Marshal(event)
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
		p.metrics.RecordNATSPublish(StreamSubjects, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.DebugContext(ctx, "published event", "subject", subject)
	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
