// Package loggroup relays the events of one CloudWatch Logs batch to a sink.
package loggroup

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/format"
	"github.com/serverless-papertrail/log-forwarder/logger"
	"github.com/serverless-papertrail/log-forwarder/sink"
	"github.com/serverless-papertrail/log-forwarder/unmarshal"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// Stats counts what happened to the events of a batch.
type Stats struct {
	Forwarded int
	Empty     int
	Lifecycle int
}

// ProcessLogs formats every event of batch in order and sends it to s as
// soon as it is formatted. Empty and runtime lifecycle lines are skipped.
// Processing stops at the first send error; the caller still closes s.
func ProcessLogs(ctx context.Context, batch common.LogBatch, s sink.Sink) (Stats, error) {
	var stats Stats
	for _, event := range batch.LogEvents {
		switch {
		case event.Message == "":
			stats.Empty++
			continue
		case format.IsLifecycle(event.Message):
			stats.Lifecycle++
			continue
		}

		if err := s.Send(ctx, format.Format(event.Message)); err != nil {
			return stats, fmt.Errorf("forwarding event %s: %w", event.ID, err)
		}
		stats.Forwarded++
	}
	return stats, nil
}

// Forwarder handles CloudWatch Logs subscription invocations.
type Forwarder struct {
	Open sink.Opener
}

// NewForwarder returns a Forwarder opening sinks through open.
func NewForwarder(open sink.Opener) *Forwarder {
	return &Forwarder{Open: open}
}

// Handle decodes the delivered batch and relays it. Control batches are
// acknowledged without opening a sink. An error means the batch was not
// fully delivered and the invocation should be retried.
func (f *Forwarder) Handle(ctx context.Context, event events.CloudwatchLogsEvent) (err error) {
	batch, err := unmarshal.Decode(event.AWSLogs.Data)
	if err != nil {
		return err
	}
	if batch.IsControl() {
		log.Debug("acknowledging control message")
		return nil
	}

	s, err := f.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := s.Close()
		switch {
		case closeErr == nil:
		case err == nil:
			err = fmt.Errorf("closing sink: %w", closeErr)
		default:
			log.WithError(closeErr).Warn("closing sink after failed send")
		}
	}()

	stats, err := ProcessLogs(ctx, batch, s)
	log.WithFields(map[string]interface{}{
		"logGroup":  batch.LogGroup,
		"logStream": batch.LogStream,
		"forwarded": stats.Forwarded,
		"lifecycle": stats.Lifecycle,
		"empty":     stats.Empty,
	}).Info("processed log batch")
	return err
}
