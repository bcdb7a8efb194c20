package sink

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/influxdata/go-syslog/v3/rfc5424"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// DefaultPriority is daemon.info.
const DefaultPriority uint8 = 3<<3 | 6

// syslogTimestamp is the RFC 5424 timestamp layout accepted by the message builder.
const syslogTimestamp = "2006-01-02T15:04:05.000000Z07:00"

// SyslogOption configures a Syslog sink.
type SyslogOption func(*syslogOptions)

type syslogOptions struct {
	tls       *tls.Config
	plaintext bool
	priority  uint8
	now       func() time.Time
}

// WithTLSConfig overrides the TLS client configuration.
func WithTLSConfig(cfg *tls.Config) SyslogOption {
	return func(o *syslogOptions) {
		o.tls = cfg
	}
}

// WithPlaintext disables TLS.
func WithPlaintext() SyslogOption {
	return func(o *syslogOptions) {
		o.plaintext = true
	}
}

// WithPriority sets the PRI value of every message.
func WithPriority(priority uint8) SyslogOption {
	return func(o *syslogOptions) {
		o.priority = priority
	}
}

// WithClock sets the source of message timestamps.
func WithClock(now func() time.Time) SyslogOption {
	return func(o *syslogOptions) {
		o.now = now
	}
}

// Syslog relays records as RFC 5424 messages over one TCP connection,
// one message per line.
type Syslog struct {
	identity common.ForwarderIdentity
	opts     syslogOptions
	conn     net.Conn
	w        *bufio.Writer
	closed   bool
}

// DialSyslog connects to the sink address of identity.
func DialSyslog(ctx context.Context, identity common.ForwarderIdentity, options ...SyslogOption) (*Syslog, error) {
	opts := syslogOptions{priority: DefaultPriority, now: time.Now}
	for _, fn := range options {
		if fn != nil {
			fn(&opts)
		}
	}

	addr := identity.Address()
	dialer := &net.Dialer{}

	var conn net.Conn
	var err error
	if opts.plaintext {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		cfg := opts.tls
		if cfg == nil {
			cfg = &tls.Config{ServerName: identity.SinkHost, MinVersion: tls.VersionTLS12}
		}
		td := &tls.Dialer{NetDialer: dialer, Config: cfg}
		conn, err = td.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", common.ErrSinkDelivery, addr, err)
	}

	log.WithField("address", addr).WithField("tls", !opts.plaintext).Debug("connected to syslog sink")
	return &Syslog{
		identity: identity,
		opts:     opts,
		conn:     conn,
		w:        bufio.NewWriter(conn),
	}, nil
}

// SyslogOpener dials a new Syslog sink per invocation.
func SyslogOpener(identity common.ForwarderIdentity, options ...SyslogOption) Opener {
	return func(ctx context.Context) (Sink, error) {
		return DialSyslog(ctx, identity, options...)
	}
}

// Send queues record. Every non-empty line of a multi-line record becomes its own message.
func (s *Syslog) Send(ctx context.Context, record string) error {
	if s.closed {
		return fmt.Errorf("%w: sink is closed", common.ErrSinkDelivery)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSinkDelivery, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("%w: setting write deadline: %v", common.ErrSinkDelivery, err)
		}
	}

	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		msg, err := s.message(line)
		if err != nil {
			return fmt.Errorf("%w: building message: %v", common.ErrSinkDelivery, err)
		}
		if _, err := s.w.WriteString(msg + "\n"); err != nil {
			return fmt.Errorf("%w: writing message: %v", common.ErrSinkDelivery, err)
		}
	}
	return nil
}

func (s *Syslog) message(line string) (string, error) {
	msg := &rfc5424.SyslogMessage{}
	msg.SetPriority(s.opts.priority)
	msg.SetVersion(1)
	msg.SetTimestamp(s.opts.now().UTC().Format(syslogTimestamp))
	if s.identity.Hostname != "" {
		msg.SetHostname(s.identity.Hostname)
	}
	if s.identity.Program != "" {
		msg.SetAppname(s.identity.Program)
	}
	msg.SetMessage(line)
	return msg.String()
}

// Close flushes queued messages and closes the connection. Calling Close
// more than once is a no-op.
func (s *Syslog) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.w.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flushing messages: %v", err))
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing connection: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", common.ErrSinkDelivery, errors.Join(errs...))
	}
	return nil
}
