// Package broker wraps a NATS connection used as a lightweight wake-up
// signal for the pipeline worker (spec §5's broker semantics: "the
// relational store remains the durable record of work"). Nothing here is
// ever the source of truth for a job — internal/repository's jobs table
// is — so a broker outage degrades the worker down to ticker-only polling
// instead of failing a job.
package broker

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// PipelineSubject is the one subject a job enqueue publishes to; the
// worker subscribes to it to poll immediately instead of waiting out its
// ticker interval.
const PipelineSubject = "apcore.jobs.pipeline_run"

// Broker publishes wake-up notifications and lets subscribers listen for
// them. It never carries job payloads — subscribers always re-claim from
// the database, so a missed or duplicate notification is harmless.
type Broker struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// Connect dials natsURL with unlimited reconnects, the way the teacher's
// NATSEventPublisher does, since a wake-up signal is worth retrying
// indefinitely but never worth blocking startup on.
func Connect(natsURL string, log zerolog.Logger) (*Broker, error) {
	nc, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("broker disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("broker reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("broker: connect: %w", err)
	}
	return &Broker{nc: nc, log: log}, nil
}

// Close drains and closes the underlying connection.
func (b *Broker) Close() {
	b.nc.Drain()
}

// NotifyJobReady signals that a pipeline_run job was just enqueued.
// Publish failures are logged, not returned — the ticker-based poll
// still picks the job up on its next tick.
func (b *Broker) NotifyJobReady() {
	if err := b.nc.Publish(PipelineSubject, nil); err != nil {
		b.log.Warn().Err(err).Msg("broker: publish wake-up failed")
	}
}

// Subscribe registers fn to run every time a wake-up notification arrives.
func (b *Broker) Subscribe(fn func()) error {
	_, err := b.nc.Subscribe(PipelineSubject, func(*nats.Msg) { fn() })
	if err != nil {
		return fmt.Errorf("broker: subscribe: %w", err)
	}
	return nil
}
