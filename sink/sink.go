// Package sink delivers formatted log records to their destination.
//
// A Sink is opened once per invocation, receives records in order and is
// closed when the batch is done. Close is the flush point: an error returned
// from it means records may not have reached the destination.
package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/logger"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// Sink is the destination of formatted records.
type Sink interface {
	Send(ctx context.Context, record string) error
	Close() error
}

// Opener opens a sink for one invocation.
type Opener func(ctx context.Context) (Sink, error)

// Types accepted by the SINK_TYPE environment variable.
const (
	TypePapertrail = "papertrail"
	TypeNewRelic   = "newrelic"
	TypeStdout     = "stdout"
)

// Writer is a Sink writing one record per line to an io.Writer. It backs
// local replays.
type Writer struct {
	w io.Writer
}

// NewWriter returns a sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes record followed by a newline.
func (s *Writer) Send(ctx context.Context, record string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSinkDelivery, err)
	}
	if _, err := io.WriteString(s.w, record+"\n"); err != nil {
		return fmt.Errorf("%w: writing record: %v", common.ErrSinkDelivery, err)
	}
	return nil
}

// Close is a no-op; the underlying writer is owned by the caller.
func (s *Writer) Close() error {
	return nil
}

// WriterOpener always opens a Writer on w.
func WriterOpener(w io.Writer) Opener {
	return func(context.Context) (Sink, error) {
		return NewWriter(w), nil
	}
}
