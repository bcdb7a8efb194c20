// Command papertrail-deploy provisions the Papertrail log forwarder of a
// serverless service. Each subcommand runs at one stage of the host's
// deployment pipeline:
//
//	package   before deployment artifacts are created
//	compile   after function resources are compiled into the template
//	cleanup   after the stack is deployed
//
// replay runs the forwarder pipeline locally against a captured invocation.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
