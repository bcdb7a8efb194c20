package cfn

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// PermissionLogicalID is the id of the single invoke permission granted to CloudWatch Logs.
const PermissionLogicalID = "LambdaPermissionForSubscription"

// NormalizeFunctionName follows the serverless framework convention:
// dashes and underscores are spelled out and the first letter is upper-cased.
func NormalizeFunctionName(name string) string {
	name = strings.ReplaceAll(name, "-", "Dash")
	name = strings.ReplaceAll(name, "_", "Underscore")
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// LambdaLogicalID is the id the host gives the AWS::Lambda::Function of name.
func LambdaLogicalID(name string) string {
	return NormalizeFunctionName(name) + "LambdaFunction"
}

// LogGroupLogicalID is the id of the log group of function name.
func LogGroupLogicalID(name string) string {
	return NormalizeFunctionName(name) + "LogGroup"
}

// SubscriptionFilterLogicalID is the id of the subscription filter routing function name's logs.
func SubscriptionFilterLogicalID(name string) string {
	return NormalizeFunctionName(name) + "SubscriptionFilter"
}
