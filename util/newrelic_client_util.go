// Package util provides utility functions for New Relic client operations,
// secret management, and message batching for the log forwarder.
package util

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/newrelic/newrelic-client-go/v2/pkg/config"
	logging "github.com/newrelic/newrelic-client-go/v2/pkg/logs"
	"github.com/newrelic/newrelic-client-go/v2/pkg/region"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// NewRelicClientAPI is an interface that defines the methods for interacting with the New Relic Logs API.
type NewRelicClientAPI interface {
	CreateLogEntry(logEntry interface{}) error
}

// ConsumeLogBatches posts every batch read from channel until it is closed or the context is cancelled.
// A failed batch does not stop the others; all failures are returned together.
func ConsumeLogBatches(ctx context.Context, channel <-chan common.DetailedLogsBatch, nrClientAPI NewRelicClientAPI) error {
	var errs []error
	for {
		select {
		case batch, ok := <-channel:
			if !ok {
				return errors.Join(errs...)
			}
			if err := nrClientAPI.CreateLogEntry(batch); err != nil {
				log.Errorf("error posting Log entry: %v", err)
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
}

// NewNRClient Initializes a new NRClient with debug level and region
// It returns a NewRelicClientAPI interface and an error if there is a problem setting the region
// or fetching the license key.
func NewNRClient(ctx context.Context) (NewRelicClientAPI, error) {
	nrRegion, err := region.Get(region.Name(os.Getenv(common.NewRelicRegion)))
	if err != nil {
		// Get falls back to the default region alongside the error
		log.WithField("region", os.Getenv(common.NewRelicRegion)).Warnf("using default New Relic region: %v", err)
	}

	cfg := config.Config{
		Compression: config.Compression.Gzip,
	}

	if os.Getenv(common.DebugEnabled) == "true" {
		cfg.LogLevel = "debug"
	} else {
		cfg.LogLevel = "info"
	}

	if err := cfg.SetRegion(nrRegion); err != nil {
		return nil, fmt.Errorf("%w: setting New Relic region: %v", common.ErrConfiguration, err)
	}

	licenseKey, err := GetLicenseKeyWithContext(ctx)
	if err != nil {
		return nil, err
	}
	cfg.LicenseKey = licenseKey

	nrClient := logging.New(cfg)
	return &nrClient, nil
}
