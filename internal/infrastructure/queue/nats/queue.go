package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/adamantic/aussietenders/internal/core/domain"
	"github.com/adamantic/aussietenders/internal/infrastructure/resilience"
)

// enrichmentRequest is the wire payload on the enrichment subject.
type enrichmentRequest struct {
	RequestID   string    `json:"request_id"`
	BatchSize   int       `json:"batch_size"`
	RequestedAt time.Time `json:"requested_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	group    string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	group := options.QueueGroup
	if group == "" {
		group = "enrichers"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("aussietenders"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		group:    group,
		executor: options.ResilienceExecutor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// TriggerEnrichment publishes a batch request for the worker pool and
// returns as soon as the message is handed to the server.
func (q *Queue) TriggerEnrichment(ctx context.Context, batchSize int) error {
	payload, err := encodeRequest(batchSize, q.now())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeEnrichmentRequested blocks until ctx is cancelled. Messages in the
// queue group are delivered to one worker each and handled sequentially.
func (q *Queue) SubscribeEnrichmentRequested(ctx context.Context, handler func(context.Context, int) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		req, err := decodeRequest(msg.Data)
		if err != nil {
			q.logger.Warn("enrichment_request_dropped", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req.BatchSize); err != nil {
			q.logger.Error("enrichment_request_failed",
				"request_id", req.RequestID,
				"batch_size", req.BatchSize,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeRequest(batchSize int, at time.Time) ([]byte, error) {
	if batchSize <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode enrichment request", fmt.Errorf("batch size %d", batchSize))
	}
	payload, err := json.Marshal(enrichmentRequest{
		RequestID:   uuid.NewString(),
		BatchSize:   batchSize,
		RequestedAt: at.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal enrichment request: %w", err)
	}
	return payload, nil
}

func decodeRequest(data []byte) (enrichmentRequest, error) {
	var req enrichmentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return enrichmentRequest{}, fmt.Errorf("decode enrichment request: %w", err)
	}
	if req.BatchSize <= 0 {
		return enrichmentRequest{}, fmt.Errorf("decode enrichment request: batch size %d", req.BatchSize)
	}
	return req, nil
}
