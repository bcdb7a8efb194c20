package util

import (
	"github.com/serverless-papertrail/log-forwarder/common"
)

// ProduceMessageToChannel wraps one payload worth of entries with the shared
// attributes and queues it on channel.
func ProduceMessageToChannel(channel chan<- common.DetailedLogsBatch, currentBatch common.LogData, attributes common.LogAttributes) {
	channel <- common.DetailedLogsBatch{{
		CommonData: common.Common{
			Attributes: attributes,
		},
		Entries: currentBatch,
	}}
}
