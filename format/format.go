// Package format classifies forwarded log lines and rewrites structured ones
// into a single JSON record.
//
// A line is one of three shapes, tried in this order:
//
//   - TabEnvelope: "<timestamp>\t<requestId>\t<payload>", exactly three fields.
//   - PlainJSON: the whole line is a JSON document.
//   - Unparsed: anything else, forwarded verbatim.
//
// JSON is rewritten with github.com/valyala/fastjson so that the key order of
// the application's object is kept and added keys go last.
package format

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// Kind is the shape of a log line.
type Kind int

// Line shapes, in precedence order.
const (
	Unparsed Kind = iota
	TabEnvelope
	PlainJSON
)

func (k Kind) String() string {
	switch k {
	case TabEnvelope:
		return "tab-envelope"
	case PlainJSON:
		return "plain-json"
	default:
		return "unparsed"
	}
}

// DefaultStatusCode is added to plain JSON objects lacking a statusCode.
const DefaultStatusCode = 500

// Classification is the result of Classify.
type Classification struct {
	Kind Kind
	Raw  string

	// RequestID and Payload are set for TabEnvelope.
	RequestID string
	Payload   string

	value *fastjson.Value
}

// IsLifecycle reports whether line is a runtime START, END or REPORT line.
// Application output that happens to start with the same words is dropped too.
func IsLifecycle(line string) bool {
	for _, prefix := range common.LifecyclePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Classify determines the shape of line.
func Classify(line string) Classification {
	if fields := strings.Split(line, "\t"); len(fields) == 3 {
		return Classification{Kind: TabEnvelope, Raw: line, RequestID: fields[1], Payload: fields[2]}
	}

	var p fastjson.Parser
	if v, err := p.Parse(line); err == nil {
		return Classification{Kind: PlainJSON, Raw: line, value: v}
	}
	return Classification{Kind: Unparsed, Raw: line}
}

// Format returns the record forwarded for line. It never fails: lines that
// do not match their shape fall back to a less structured record.
func Format(line string) string {
	c := Classify(line)
	switch c.Kind {
	case TabEnvelope:
		return formatEnvelope(c)
	case PlainJSON:
		return formatPlainJSON(c)
	default:
		return c.Raw
	}
}

func formatEnvelope(c Classification) string {
	var p fastjson.Parser
	v, err := p.Parse(c.Payload)
	if err != nil {
		return envelopeFallback(c)
	}
	switch v.Type() {
	case fastjson.TypeObject:
	case fastjson.TypeArray:
		// an array takes no requestId and is forwarded re-serialized
		return string(v.MarshalTo(nil))
	default:
		return envelopeFallback(c)
	}

	// API Gateway proxy events carry the request body as a JSON string.
	if event := v.Get("event"); event != nil && event.Type() == fastjson.TypeObject {
		if body := event.Get("body"); body != nil && body.Type() == fastjson.TypeString {
			raw, err := body.StringBytes()
			if err != nil {
				return envelopeFallback(c)
			}
			var bp fastjson.Parser
			parsed, err := bp.ParseBytes(raw)
			if err != nil {
				return envelopeFallback(c)
			}
			event.Set("body", parsed)
		}
	}

	if v.Get("requestId") == nil {
		v.Set("requestId", stringValue(c.RequestID))
	}
	return string(v.MarshalTo(nil))
}

func envelopeFallback(c Classification) string {
	var a fastjson.Arena
	o := a.NewObject()
	o.Set("requestId", stringValue(c.RequestID))
	o.Set("log", stringValue(c.Payload))
	return string(o.MarshalTo(nil))
}

// stringValue returns s as a JSON string encoded by encoding/json, so control
// characters come out as \u00XX escapes. The value must not be inspected with
// Type before marshaling: that unescapes it and Arena quoting takes over.
func stringValue(s string) *fastjson.Value {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// strings always encode
		panic(err)
	}
	return fastjson.MustParseBytes(buf.Bytes())
}

func formatPlainJSON(c Classification) string {
	switch c.value.Type() {
	case fastjson.TypeObject:
		if c.value.Get("statusCode") == nil {
			var a fastjson.Arena
			c.value.Set("statusCode", a.NewNumberInt(DefaultStatusCode))
		}
		return string(c.value.MarshalTo(nil))
	case fastjson.TypeArray:
		return string(c.value.MarshalTo(nil))
	default:
		// scalars cannot carry a statusCode and are forwarded as written
		return c.Raw
	}
}
