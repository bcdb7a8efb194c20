package packaging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/config"
	"github.com/serverless-papertrail/log-forwarder/template"
)

func testService() *config.Service {
	return &config.Service{
		Service: "billing",
		Provider: config.Provider{
			Stage:     "prod",
			StackTags: map[string]string{"team": "payments"},
		},
		Custom: config.Custom{Papertrail: &config.Papertrail{Host: "logs3.papertrailapp.com", Port: "34567"}},
		Functions: map[string]*config.Function{
			"api": {Handler: "api/bootstrap"},
		},
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	c := NewCoordinator(t.TempDir(), testService())

	require.NoError(t, c.Prepare())
	require.NoError(t, c.Prepare())

	info, err := os.Stat(c.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEmit(t *testing.T) {
	svc := testService()
	c := NewCoordinator(t.TempDir(), svc)
	require.NoError(t, c.Prepare())
	require.NoError(t, c.Emit())

	id, err := template.LoadIdentity(c.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, common.ForwarderIdentity{
		SinkHost: "logs3.papertrailapp.com",
		SinkPort: "34567",
		Hostname: "billing",
		Program:  "prod",
	}, id)

	fn := svc.Functions[common.ForwarderFunctionName]
	require.NotNil(t, fn)
	assert.Equal(t, "papertrailLogger/bootstrap", fn.Handler)
	assert.Equal(t, "billing-prod-papertrailLogger", fn.Name)
	assert.Equal(t, map[string]string{"team": "payments"}, fn.Tags)
	assert.NotNil(t, fn.Events)
	assert.Empty(t, fn.Events)

	// tags are copied, not shared
	svc.Provider.StackTags["team"] = "other"
	assert.Equal(t, "payments", fn.Tags["team"])
}

func TestEmitWithoutTags(t *testing.T) {
	svc := testService()
	svc.Provider.StackTags = nil
	c := NewCoordinator(t.TempDir(), svc)
	require.NoError(t, c.Prepare())
	require.NoError(t, c.Emit())

	assert.NotNil(t, svc.Functions[common.ForwarderFunctionName].Tags)
	assert.Empty(t, svc.Functions[common.ForwarderFunctionName].Tags)
}

func TestEmitWithoutPort(t *testing.T) {
	svc := testService()
	svc.Custom.Papertrail.Port = ""
	c := NewCoordinator(t.TempDir(), svc)
	require.NoError(t, c.Prepare())

	err := c.Emit()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, statErr := os.Stat(c.ArtifactPath())
	assert.True(t, os.IsNotExist(statErr), "nothing must be written on configuration errors")
	assert.NotContains(t, svc.Functions, common.ForwarderFunctionName)
}

func TestEmitWithoutPrepare(t *testing.T) {
	c := NewCoordinator(filepath.Join(t.TempDir(), "missing"), testService())

	err := c.Emit()
	assert.True(t, errors.Is(err, common.ErrArtifact))
}

func TestRetire(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(c *Coordinator)
		expectError bool
	}{
		{
			name:  "nothing was ever created",
			setup: func(c *Coordinator) {},
		},
		{
			name: "directory without artifact",
			setup: func(c *Coordinator) {
				require.NoError(t, c.Prepare())
			},
		},
		{
			name: "emitted artifact",
			setup: func(c *Coordinator) {
				require.NoError(t, c.Prepare())
				require.NoError(t, c.Emit())
			},
		},
		{
			name: "built forwarder binary",
			setup: func(c *Coordinator) {
				require.NoError(t, c.Prepare())
				require.NoError(t, c.Emit())
				require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), common.ForwarderBinary), []byte("\x7fELF"), 0o755))
			},
		},
		{
			name: "directory not empty",
			setup: func(c *Coordinator) {
				require.NoError(t, c.Prepare())
				require.NoError(t, c.Emit())
				require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), "stray.txt"), []byte("x"), 0o644))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator(t.TempDir(), testService())
			tt.setup(c)

			err := c.Retire()
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrArtifact))
				return
			}
			require.NoError(t, err)
			_, statErr := os.Stat(c.Dir())
			assert.True(t, os.IsNotExist(statErr))

			// a second cleanup is a no-op
			assert.NoError(t, c.Retire())
		})
	}
}
