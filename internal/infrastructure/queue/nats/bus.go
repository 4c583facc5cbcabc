// Package nats implements the pipeline message bus on NATS JetStream.
// Delivery is at-least-once: AckWait is the visibility-timeout lease and
// MaxDeliver the redelivery budget; exhausted or permanently failed messages
// are published to the queue's dead-letter subject for manual inspection.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/core/ports"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/resilience"
)

const dlqSuffix = ".dlq"

// DeadLetterQueue names the dead-letter subject paired with a queue.
func DeadLetterQueue(queue string) string {
	return queue + dlqSuffix
}

type Options struct {
	StreamName           string
	Subjects             []string
	AckWait              time.Duration
	MaxDeliver           int
	FetchBatch           int
	PollWait             time.Duration
	Concurrency          int
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.StreamName == "" {
		o.StreamName = "DOCPIPE"
	}
	if o.AckWait <= 0 {
		o.AckWait = 30 * time.Second
	}
	if o.MaxDeliver <= 0 {
		o.MaxDeliver = 5
	}
	if o.FetchBatch <= 0 {
		o.FetchBatch = 16
	}
	if o.PollWait <= 0 {
		o.PollWait = 2 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type Bus struct {
	conn         *nats.Conn
	js           nats.JetStreamContext
	opts         Options
	executor     *resilience.Executor
	log          *slog.Logger
	onDeadLetter func(queue string)
}

// OnDeadLetter registers a callback invoked once per parked message, with the
// source queue name. Set it before the first Consume call.
func (b *Bus) OnDeadLetter(fn func(queue string)) {
	b.onDeadLetter = fn
}

func New(url string, opts Options) (*Bus, error) {
	opts = opts.withDefaults()

	retryOnFailedConnect := true
	if opts.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *opts.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("bank-document-pipeline"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			opts.Logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			opts.Logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	bus := &Bus{
		conn:     conn,
		js:       js,
		opts:     opts,
		executor: opts.ResilienceExecutor,
		log:      opts.Logger,
	}
	if err := bus.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return bus, nil
}

// ensureStream creates the pipeline stream covering every queue subject plus
// its dead-letter twin. Dead-letter subjects have no consumer, so parked
// messages accumulate until an operator drains them.
func (b *Bus) ensureStream() error {
	subjects := make([]string, 0, len(b.opts.Subjects)*2)
	for _, s := range b.opts.Subjects {
		subjects = append(subjects, s, DeadLetterQueue(s))
	}

	_, err := b.js.StreamInfo(b.opts.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}

	_, err = b.js.AddStream(&nats.StreamConfig{
		Name:       b.opts.StreamName,
		Subjects:   subjects,
		Retention:  nats.WorkQueuePolicy,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", b.opts.StreamName, err)
	}
	return nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish writes one message to a queue. A non-empty msgID enables JetStream
// server-side deduplication inside the duplicate window, which keeps a racing
// redelivered producer from emitting the same routing message twice.
func (b *Bus) Publish(ctx context.Context, queue, msgID string, data []byte) error {
	call := func(_ context.Context) error {
		var pubOpts []nats.PubOpt
		if msgID != "" {
			pubOpts = append(pubOpts, nats.MsgId(msgID))
		}
		if _, err := b.js.Publish(queue, data, pubOpts...); err != nil {
			return fmt.Errorf("jetstream publish %s: %w", queue, err)
		}
		return nil
	}

	var err error
	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish."+queue, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("publish "+queue, err)
	}
	return nil
}

// Consume runs the pull loop for one queue until ctx is cancelled. Messages
// are processed with bounded in-flight concurrency; ordering across documents
// is not guaranteed, which is fine because each document's stages are strictly
// sequential by construction.
func (b *Bus) Consume(ctx context.Context, queue string, handler ports.MessageHandler) error {
	sub, err := b.js.PullSubscribe(
		queue,
		durableName(queue),
		nats.AckWait(b.opts.AckWait),
		nats.MaxDeliver(b.opts.MaxDeliver),
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("pull subscribe %s: %w", queue, err)
	}

	sem := make(chan struct{}, b.opts.Concurrency)
	var wg sync.WaitGroup

	for ctx.Err() == nil {
		msgs, err := sub.Fetch(b.opts.FetchBatch, nats.MaxWait(b.opts.PollWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			b.log.Warn("fetch failed", "queue", queue, "error", err)
			continue
		}

		for _, msg := range msgs {
			wg.Add(1)
			sem <- struct{}{}
			go func(m *nats.Msg) {
				defer wg.Done()
				defer func() { <-sem }()
				b.dispatch(ctx, queue, m, handler)
			}(msg)
		}
	}

	wg.Wait()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("drain subscription %s: %w", queue, err)
	}
	return nil
}

func (b *Bus) dispatch(ctx context.Context, queue string, msg *nats.Msg, handler ports.MessageHandler) {
	err := handler(ctx, msg.Data)

	switch classifyHandlerError(err) {
	case outcomeOK, outcomeDrop:
		if ackErr := msg.Ack(); ackErr != nil {
			b.log.Warn("ack failed", "queue", queue, "error", ackErr)
		}
	case outcomePermanent:
		b.deadLetter(queue, msg, err)
	case outcomeTransient:
		meta, metaErr := msg.Metadata()
		if metaErr == nil && int(meta.NumDelivered) >= b.opts.MaxDeliver {
			b.deadLetter(queue, msg, err)
			return
		}
		if nakErr := msg.Nak(); nakErr != nil {
			b.log.Warn("nak failed", "queue", queue, "error", nakErr)
		}
	}
}

func (b *Bus) deadLetter(queue string, msg *nats.Msg, cause error) {
	dlq := DeadLetterQueue(queue)
	if _, err := b.js.Publish(dlq, msg.Data); err != nil {
		// Parking failed: keep the message on the source queue instead of
		// losing it.
		b.log.Error("dead-letter publish failed", "queue", queue, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			b.log.Warn("nak after dlq failure failed", "queue", queue, "error", nakErr)
		}
		return
	}
	if err := msg.Term(); err != nil {
		b.log.Warn("term failed", "queue", queue, "error", err)
	}
	if b.onDeadLetter != nil {
		b.onDeadLetter(queue)
	}
	b.log.Warn("message parked in dead-letter queue", "queue", dlq, "cause", cause)
}

type handlerOutcome int

const (
	outcomeOK handlerOutcome = iota
	outcomeDrop
	outcomePermanent
	outcomeTransient
)

func classifyHandlerError(err error) handlerOutcome {
	switch {
	case err == nil:
		return outcomeOK
	case domain.IsKind(err, domain.ErrDuplicateEvent), domain.IsKind(err, domain.ErrUnknownJob):
		// Already handled or impossible to correlate; redelivery cannot help.
		return outcomeDrop
	case domain.IsKind(err, domain.ErrParsing), domain.IsKind(err, domain.ErrValidation):
		return outcomePermanent
	default:
		return outcomeTransient
	}
}

func durableName(queue string) string {
	out := make([]rune, 0, len(queue))
	for _, r := range queue {
		if r == '.' || r == '*' || r == '>' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return "workers_" + string(out)
}
