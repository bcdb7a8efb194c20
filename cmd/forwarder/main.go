// Command forwarder is the Lambda function subscribed to the service's log
// groups. It relays every delivered batch to the configured sink.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/logger"
	"github.com/serverless-papertrail/log-forwarder/loggroup"
	"github.com/serverless-papertrail/log-forwarder/sink"
	"github.com/serverless-papertrail/log-forwarder/template"
	"github.com/serverless-papertrail/log-forwarder/util"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel(), logger.WithJSONFormatter())

func main() {
	ctx := context.Background()

	identity, err := template.LoadIdentity(identityPath())
	if err != nil {
		log.Fatalf("loading forwarder identity: %v", err)
	}

	open, err := newOpener(ctx, os.Getenv(common.SinkType), identity)
	if err != nil {
		log.Fatalf("configuring sink: %v", err)
	}

	lambda.Start(handler(loggroup.NewForwarder(open)))
}

// identityPath locates the rendered identity file shipped in the deployment
// package, next to the forwarder binary.
func identityPath() string {
	if path := os.Getenv(common.IdentityPath); path != "" {
		return path
	}
	return filepath.Join(os.Getenv(common.LambdaTaskRoot), common.ForwarderFunctionName, common.IdentityFileName)
}

// newOpener selects the sink named by sinkType. Papertrail is the default.
func newOpener(ctx context.Context, sinkType string, identity common.ForwarderIdentity) (sink.Opener, error) {
	switch strings.ToLower(sinkType) {
	case "", sink.TypePapertrail:
		return sink.SyslogOpener(identity), nil
	case sink.TypeNewRelic:
		client, err := util.NewNRClient(ctx)
		if err != nil {
			return nil, err
		}
		return sink.NewRelicOpener(client, identity), nil
	case sink.TypeStdout:
		return sink.WriterOpener(os.Stdout), nil
	default:
		return nil, fmt.Errorf("%w: unknown sink type %q", common.ErrConfiguration, sinkType)
	}
}

func handler(forwarder *loggroup.Forwarder) func(context.Context, events.CloudwatchLogsEvent) error {
	return func(ctx context.Context, event events.CloudwatchLogsEvent) error {
		entry := log.WithField("sink", os.Getenv(common.SinkType))
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			entry = entry.WithField("awsRequestId", lc.AwsRequestID)
		}

		if err := forwarder.Handle(ctx, event); err != nil {
			entry.WithError(err).Error("forwarding log batch failed")
			return err
		}
		entry.Debug("forwarded log batch")
		return nil
	}
}
