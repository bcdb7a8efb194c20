package common

import "errors"

// Error kinds. Producers wrap them with fmt.Errorf("%w: ...") so callers can use errors.Is.
var (
	// ErrConfiguration means required deployment settings are missing or invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrSynthesis means a resource reference required for wiring could not be resolved.
	ErrSynthesis = errors.New("synthesis error")
	// ErrArtifact means a filesystem operation on the forwarder artifact failed.
	ErrArtifact = errors.New("artifact error")
	// ErrDecode means an invocation payload is not valid base64, gzip or JSON.
	ErrDecode = errors.New("decode error")
	// ErrSinkDelivery means records could not be delivered to or flushed by the sink.
	ErrSinkDelivery = errors.New("sink delivery error")
)
