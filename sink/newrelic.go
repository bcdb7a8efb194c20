package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/util"
)

// NewRelic buffers records and posts them to the New Relic Logs API on Close.
type NewRelic struct {
	// ctx is the invocation context; Close has no context of its own.
	ctx        context.Context
	client     util.NewRelicClientAPI
	attributes common.LogAttributes
	entries    common.LogData
	now        func() time.Time
	closed     bool
}

// NewNewRelic returns a sink posting through client. Every batch carries
// the instrumentation attributes plus the forwarder identity.
func NewNewRelic(ctx context.Context, client util.NewRelicClientAPI, identity common.ForwarderIdentity) *NewRelic {
	return &NewRelic{
		ctx:    ctx,
		client: client,
		attributes: common.LogAttributes{
			"instrumentation.provider": common.InstrumentationProvider,
			"instrumentation.name":     common.InstrumentationName,
			"instrumentation.version":  common.InstrumentationVersion,
			"hostname":                 identity.Hostname,
			"program":                  identity.Program,
		},
		now: time.Now,
	}
}

// NewRelicOpener opens a NewRelic sink per invocation sharing client.
func NewRelicOpener(client util.NewRelicClientAPI, identity common.ForwarderIdentity) Opener {
	return func(ctx context.Context) (Sink, error) {
		return NewNewRelic(ctx, client, identity), nil
	}
}

// Send buffers record.
func (s *NewRelic) Send(ctx context.Context, record string) error {
	if s.closed {
		return fmt.Errorf("%w: sink is closed", common.ErrSinkDelivery)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSinkDelivery, err)
	}
	s.entries = append(s.entries, map[string]interface{}{
		"timestamp": s.now().UnixMilli(),
		"message":   record,
	})
	return nil
}

// Close posts the buffered records in payloads within the Logs API limits.
func (s *NewRelic) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if len(s.entries) == 0 {
		return nil
	}

	batches := splitLogsIntoBatches(s.entries, common.MaxPayloadSize, common.MaxPayloadMessages)
	channel := make(chan common.DetailedLogsBatch, len(batches))
	for _, batch := range batches {
		util.ProduceMessageToChannel(channel, batch, s.attributes)
	}
	close(channel)

	log.WithField("records", len(s.entries)).WithField("payloads", len(batches)).Debug("posting records to New Relic")
	if err := util.ConsumeLogBatches(s.ctx, channel, s.client); err != nil {
		return fmt.Errorf("%w: posting to New Relic: %v", common.ErrSinkDelivery, err)
	}
	return nil
}

// splitLogsIntoBatches groups entries so that no batch exceeds maxPayloadSize
// bytes of JSON or maxMessages entries. An entry larger than maxPayloadSize
// travels alone.
func splitLogsIntoBatches(entries common.LogData, maxPayloadSize, maxMessages int) []common.LogData {
	var batches []common.LogData
	var currentBatch common.LogData
	currentBatchSize := 0

	for _, entry := range entries {
		entryBytes, err := json.Marshal(entry)
		if err != nil {
			log.Debugf("Warning: Could not marshal log entry for size estimation: %v", err)
			continue
		}
		entrySize := len(entryBytes)

		if len(currentBatch) > 0 && (currentBatchSize+entrySize > maxPayloadSize || len(currentBatch) >= maxMessages) {
			batches = append(batches, currentBatch)
			currentBatch = nil
			currentBatchSize = 0
		}
		currentBatch = append(currentBatch, entry)
		currentBatchSize += entrySize
	}

	if len(currentBatch) > 0 {
		batches = append(batches, currentBatch)
	}
	return batches
}
