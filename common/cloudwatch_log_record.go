package common

// LogBatch is the decoded payload of a CloudWatch Logs subscription delivery.
//
// Reference: https://docs.aws.amazon.com/AmazonCloudWatch/latest/logs/SubscriptionFilters.html
type LogBatch struct {
	Owner               string     `json:"owner"`
	LogGroup            string     `json:"logGroup"`
	LogStream           string     `json:"logStream"`
	SubscriptionFilters []string   `json:"subscriptionFilters"`
	MessageType         string     `json:"messageType"` // DATA_MESSAGE or CONTROL_MESSAGE
	LogEvents           []LogEvent `json:"logEvents"`
}

// LogEvent is a single line of a batch. Message is untrusted application output.
type LogEvent struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // Unix epoch milliseconds
	Message   string `json:"message"`
}

// IsControl reports whether the batch is a heartbeat that must be acknowledged without forwarding.
func (b LogBatch) IsControl() bool {
	return b.MessageType == ControlMessage
}
