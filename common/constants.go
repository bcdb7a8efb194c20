// Package common provides common constants structs and variables.
package common

// InstrumentationProvider is a parameter necessary for Entity Synthesis at New Relic.
const InstrumentationProvider = "aws"

// InstrumentationName is a parameter necessary for Entity Synthesis at New Relic.
const InstrumentationName = "lambda"

// InstrumentationVersion is reported alongside every New Relic batch.
const InstrumentationVersion = "1.0.0"

// NewRelicLicenseKeySecretName is the name of the environment variable for the New Relic license key secret.
const NewRelicLicenseKeySecretName = "NEW_RELIC_LICENSE_KEY_SECRET_NAME"

// EnvLicenseKey is the name of the environment variable for the license key.
const EnvLicenseKey = "LICENSE_KEY"

// LicenseKey is the name of the license key inside a JSON secret.
const LicenseKey = "LicenseKey"

// NewRelicRegion is the name of the environment variable for the New Relic region.
const NewRelicRegion = "NEW_RELIC_REGION"

// DebugEnabled is the name of the environment variable for enabling debug mode.
const DebugEnabled = "DEBUG_ENABLED"

// SinkType selects the sink the forwarder relays to ("papertrail" or "newrelic").
const SinkType = "SINK_TYPE"

// IdentityPath overrides the location of the rendered forwarder identity file.
const IdentityPath = "FORWARDER_IDENTITY_PATH"

// LambdaTaskRoot is set by the Lambda runtime to the directory holding the deployment package.
const LambdaTaskRoot = "LAMBDA_TASK_ROOT"

// MaxPayloadSize is the maximum size of a payload.
// Reference: https://docs.newrelic.com/docs/logs/log-api/introduction-log-api/#limits
const MaxPayloadSize = 1 * 1024 * 1024 // 1 mb

// MaxPayloadMessages is the maximum number of messages in a payload.
const MaxPayloadMessages = 900

// LambdaLogGroup is prefix for identifing log group belonging to lambda
const LambdaLogGroup = "/aws/lambda"

// ForwarderFunctionName is the logical name of the forwarder function inside the service.
const ForwarderFunctionName = "papertrailLogger"

// IdentityFileName is the name of the rendered identity file inside the forwarder artifact.
const IdentityFileName = "forwarder.yaml"

// ForwarderBinary is the executable built into the forwarder artifact directory.
const ForwarderBinary = "bootstrap"

// ForwarderHandler is the handler reference registered for the forwarder function.
const ForwarderHandler = ForwarderFunctionName + "/" + ForwarderBinary

// DefaultSinkHost is used when the deployment does not configure a sink host.
const DefaultSinkHost = "logs.papertrailapp.com"

// RetentionInDays is applied to every log group of the deployment.
const RetentionInDays = 30

// ControlMessage is the messageType of heartbeat batches carrying no log lines.
const ControlMessage = "CONTROL_MESSAGE"

// DataMessage is the messageType of batches carrying log lines.
const DataMessage = "DATA_MESSAGE"

// LifecyclePrefixes mark runtime start, end and report lines which are never forwarded.
var LifecyclePrefixes = []string{
	"START RequestId",
	"END RequestId",
	"REPORT RequestId",
}
