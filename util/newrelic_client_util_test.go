package util

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// MockNRClient is a mock type for the Logs interface.
type MockNRClient struct {
	mock.Mock
}

// CreateLogEntry is a mock method that satisfies the Logs interface.
func (m *MockNRClient) CreateLogEntry(batch interface{}) error {
	args := m.Called(batch)
	return args.Error(0)
}

// TestNewNRClient tests the NewNRClient function with different scenarios.
func TestNewNRClient(t *testing.T) {
	tests := []struct {
		name          string
		envDebug      string
		envRegion     string
		envLicenseKey string
		expectError   bool
	}{
		{
			name:          "Debug enabled with env license key",
			envDebug:      "true",
			envRegion:     "us",
			envLicenseKey: "valid_license_key",
		},
		{
			name:          "Debug disabled with env license key",
			envRegion:     "eu",
			envLicenseKey: "valid_license_key",
		},
		{
			name:          "Invalid region with env license key",
			envRegion:     "invalid",
			envLicenseKey: "valid_license_key",
		},
		{
			name:        "No license key and no secret name",
			envRegion:   "us",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(common.DebugEnabled, tt.envDebug)
			t.Setenv(common.NewRelicRegion, tt.envRegion)
			t.Setenv(common.EnvLicenseKey, tt.envLicenseKey)
			t.Setenv(common.NewRelicLicenseKeySecretName, "")

			nrClient, err := NewNRClient(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, nrClient)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, nrClient)
		})
	}
}

func testBatch(message string) common.DetailedLogsBatch {
	return common.DetailedLogsBatch{{
		Entries: common.LogData{{"message": message}},
	}}
}

// TestConsumeLogBatches tests the ConsumeLogBatches function.
func TestConsumeLogBatches(t *testing.T) {
	mockNRClient := new(MockNRClient)
	mockNRClient.On("CreateLogEntry", mock.Anything).Return(nil)

	channel := make(chan common.DetailedLogsBatch, 2)
	channel <- testBatch("first")
	channel <- testBatch("second")
	close(channel)

	err := ConsumeLogBatches(context.Background(), channel, mockNRClient)
	require.NoError(t, err)
	mockNRClient.AssertNumberOfCalls(t, "CreateLogEntry", 2)
}

func TestConsumeLogBatchesContinuesAfterFailure(t *testing.T) {
	mockNRClient := new(MockNRClient)
	mockNRClient.On("CreateLogEntry", testBatch("first")).Return(errors.New("status 403"))
	mockNRClient.On("CreateLogEntry", testBatch("second")).Return(nil)

	channel := make(chan common.DetailedLogsBatch, 2)
	channel <- testBatch("first")
	channel <- testBatch("second")
	close(channel)

	err := ConsumeLogBatches(context.Background(), channel, mockNRClient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	mockNRClient.AssertNumberOfCalls(t, "CreateLogEntry", 2)
}

func TestConsumeLogBatchesCancelled(t *testing.T) {
	mockNRClient := new(MockNRClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	channel := make(chan common.DetailedLogsBatch)
	err := ConsumeLogBatches(ctx, channel, mockNRClient)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	mockNRClient.AssertNotCalled(t, "CreateLogEntry", mock.Anything)
}
