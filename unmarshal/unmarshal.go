// Package unmarshal decodes CloudWatch Logs subscription payloads delivered to the forwarder.
package unmarshal

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/klauspost/compress/gzip"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/logger"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// Decode turns the base64, gzip compressed awslogs data into a batch. A
// control message decodes successfully; callers check Batch.IsControl.
func Decode(data string) (common.LogBatch, error) {
	var batch common.LogBatch

	compressed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return batch, fmt.Errorf("%w: base64-decoding payload: %v", common.ErrDecode, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return batch, fmt.Errorf("%w: creating gzip reader: %v", common.ErrDecode, err)
	}
	defer gz.Close()

	payload, err := io.ReadAll(gz)
	if err != nil {
		return batch, fmt.Errorf("%w: decompressing payload: %v", common.ErrDecode, err)
	}

	if err := json.Unmarshal(payload, &batch); err != nil {
		return batch, fmt.Errorf("%w: parsing payload: %v", common.ErrDecode, err)
	}

	log.WithField("logGroup", batch.LogGroup).
		WithField("messageType", batch.MessageType).
		WithField("events", len(batch.LogEvents)).
		Debug("decoded log batch")
	return batch, nil
}

// Event is a raw Lambda invocation document carrying CloudWatch Logs data.
type Event struct {
	events.CloudwatchLogsEvent
	Batch common.LogBatch
}

// Unmarshal reads a {"awslogs":{"data":"..."}} document from in and decodes its batch.
func (event *Event) Unmarshal(in io.Reader) error {
	payloadBytes, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading incoming payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &event.CloudwatchLogsEvent); err != nil {
		return fmt.Errorf("%w: parsing invocation event: %v", common.ErrDecode, err)
	}
	if event.AWSLogs.Data == "" {
		return fmt.Errorf("%w: invocation event carries no awslogs data", common.ErrDecode)
	}

	event.Batch, err = Decode(event.AWSLogs.Data)
	return err
}

// Encode compresses and encodes a batch the way CloudWatch Logs delivers it.
// It is the inverse of Decode and is used to build replay events.
func Encode(batch common.LogBatch) (string, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return "", err
	}
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	if _, err := gz.Write(payload); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
