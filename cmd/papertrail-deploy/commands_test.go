package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverless-papertrail/log-forwarder/cfn"
	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/config"
	"github.com/serverless-papertrail/log-forwarder/template"
	"github.com/serverless-papertrail/log-forwarder/unmarshal"
)

const serviceYAML = `service: billing
provider:
  name: aws
  stage: prod
custom:
  papertrail:
    port: 41234
functions:
  api:
    handler: api/bootstrap
  send-email:
    handler: email/bootstrap
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// compiledTemplate writes what the host produces between package and compile.
func compiledTemplate(t *testing.T, dir string, svc *config.Service) string {
	t.Helper()
	resources := cfn.ResourceSet{}
	for _, name := range svc.FunctionNames() {
		resources[cfn.LambdaLogicalID(name)] = &cfn.Resource{Type: cfn.TypeFunction, Properties: map[string]interface{}{
			"FunctionName": svc.FunctionName(name),
		}}
		resources[cfn.LogGroupLogicalID(name)] = &cfn.Resource{Type: cfn.TypeLogGroup, Properties: map[string]interface{}{
			"LogGroupName": "/aws/lambda/" + svc.FunctionName(name),
		}}
	}

	path := filepath.Join(dir, DefaultTemplatePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, (&cfn.Template{Resources: resources}).Save(path))
	return path
}

func TestDeployLifecycle(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "serverless.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(serviceYAML), 0o644))

	_, err := execute(t, "package", "--service-path", dir)
	require.NoError(t, err)

	identity, err := template.LoadIdentity(filepath.Join(dir, common.ForwarderFunctionName, common.IdentityFileName))
	require.NoError(t, err)
	assert.Equal(t, common.ForwarderIdentity{
		SinkHost: common.DefaultSinkHost,
		SinkPort: "41234",
		Hostname: "billing",
		Program:  "prod",
	}, identity)

	svc, err := config.LoadService(configPath)
	require.NoError(t, err)
	require.Contains(t, svc.Functions, common.ForwarderFunctionName)
	assert.Equal(t, common.ForwarderHandler, svc.Functions[common.ForwarderFunctionName].Handler)

	templatePath := compiledTemplate(t, dir, svc)
	out, err := execute(t, "compile", "--service-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 subscription filter(s)")

	tmpl, err := cfn.LoadTemplate(templatePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"ApiSubscriptionFilter", "SendDashemailSubscriptionFilter"}, tmpl.Resources.IDsOfType(cfn.TypeSubscriptionFilter))
	assert.Equal(t, []string{cfn.PermissionLogicalID}, tmpl.Resources.IDsOfType(cfn.TypePermission))

	_, err = execute(t, "cleanup", "--service-path", dir)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, common.ForwarderFunctionName))

	svc, err = config.LoadService(configPath)
	require.NoError(t, err)
	assert.NotContains(t, svc.Functions, common.ForwarderFunctionName)
	assert.Equal(t, []string{"api", "send-email"}, svc.FunctionNames())
}

func TestPackageWithoutPort(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "serverless.yml"), []byte("service: billing\n"), 0o644))

	_, err := execute(t, "package", "--service-path", dir)
	assert.True(t, errors.Is(err, common.ErrConfiguration), "got %v", err)
	assert.NoDirExists(t, filepath.Join(dir, common.ForwarderFunctionName))
}

func TestCompileWithoutPackage(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "serverless.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(serviceYAML), 0o644))
	svc, err := config.LoadService(configPath)
	require.NoError(t, err)
	templatePath := compiledTemplate(t, dir, svc)
	before, err := os.ReadFile(templatePath)
	require.NoError(t, err)

	_, err = execute(t, "compile", "--service-path", dir)
	assert.True(t, errors.Is(err, common.ErrSynthesis), "got %v", err)

	after, err := os.ReadFile(templatePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestServicePaths(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--service-path", "/srv/billing"}))

	dir, configPath, err := servicePaths(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/srv/billing", dir)
	assert.Equal(t, filepath.Join("/srv/billing", "serverless.yml"), configPath)

	require.NoError(t, cmd.ParseFlags([]string{"--config", "/etc/serverless.yml"}))
	_, configPath, err = servicePaths(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/etc/serverless.yml", configPath)

	_, _, err = servicePaths(&cobra.Command{Use: "bare"})
	assert.Error(t, err)
}

func TestCleanupWithoutArtifact(t *testing.T) {
	_, err := execute(t, "cleanup", "--service-path", t.TempDir())
	assert.NoError(t, err)
}

func TestReplay(t *testing.T) {
	data, err := unmarshal.Encode(common.LogBatch{
		MessageType: common.DataMessage,
		LogGroup:    "/aws/lambda/billing-prod-api",
		LogEvents: []common.LogEvent{
			{ID: "1", Timestamp: 1, Message: "START RequestId: abc-123 Version: $LATEST"},
			{ID: "2", Timestamp: 2, Message: `{"foo":"bar"}`},
			{ID: "3", Timestamp: 3, Message: "hello world"},
		},
	})
	require.NoError(t, err)

	event, err := json.Marshal(events.CloudwatchLogsEvent{AWSLogs: events.CloudwatchLogsRawData{Data: data}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, event, 0o644))

	out, err := execute(t, "replay", path)
	require.NoError(t, err)
	assert.Equal(t, "{\"foo\":\"bar\",\"statusCode\":500}\nhello world\n", out)
}

func TestReplayInvalidEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"awslogs":{"data":"bm90IGd6aXA="}}`), 0o644))

	_, err := execute(t, "replay", path)
	assert.True(t, errors.Is(err, common.ErrDecode), "got %v", err)
}
