// Package packaging materializes the forwarder artifact next to the service,
// registers the forwarder as a function of the service and removes the
// artifact once the deployment has consumed it.
package packaging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/serverless-papertrail/log-forwarder/common"
	"github.com/serverless-papertrail/log-forwarder/config"
	"github.com/serverless-papertrail/log-forwarder/logger"
	"github.com/serverless-papertrail/log-forwarder/template"
)

var log = logger.NewLogrusLogger(logger.WithDebugLevel())

// Coordinator drives Prepare, Emit and Retire for one service.
type Coordinator struct {
	ServicePath string
	Service     *config.Service
	// Source is the identity template; template.Default when empty.
	Source string
}

// NewCoordinator returns a coordinator rendering the default template.
func NewCoordinator(servicePath string, svc *config.Service) *Coordinator {
	return &Coordinator{ServicePath: servicePath, Service: svc}
}

// Dir is the build directory of the forwarder artifact.
func (c *Coordinator) Dir() string {
	return filepath.Join(c.ServicePath, common.ForwarderFunctionName)
}

// ArtifactPath is the path of the rendered identity file.
func (c *Coordinator) ArtifactPath() string {
	return filepath.Join(c.Dir(), common.IdentityFileName)
}

// Prepare creates the build directory if it does not exist yet.
func (c *Coordinator) Prepare() error {
	log.Info("Creating temporary logger function...")
	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", common.ErrArtifact, c.Dir(), err)
	}
	return nil
}

// Emit renders the artifact into the build directory and registers the
// forwarder function. Events stay empty; the subscription filters that feed
// the forwarder are produced by synthesis.
func (c *Coordinator) Emit() error {
	if err := c.Service.Validate(); err != nil {
		return err
	}

	src := c.Source
	if src == "" {
		src = template.Default
	}
	rendered, err := template.Render(src, template.Values(c.Service.Identity()))
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.ArtifactPath(), []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", common.ErrArtifact, c.ArtifactPath(), err)
	}

	if c.Service.Functions == nil {
		c.Service.Functions = map[string]*config.Function{}
	}
	name := fmt.Sprintf("%s-%s-%s", c.Service.Service, c.Service.Stage(), common.ForwarderFunctionName)
	c.Service.Functions[common.ForwarderFunctionName] = &config.Function{
		Handler: common.ForwarderHandler,
		Name:    name,
		Tags:    c.Service.StackTags(),
		Events:  []yaml.Node{},
	}

	log.WithField("function", name).WithField("artifact", c.ArtifactPath()).Debug("registered forwarder function")
	return nil
}

// artifactFiles are the files the forwarder package is built from.
var artifactFiles = []string{common.IdentityFileName, common.ForwarderBinary}

// Retire deletes the artifact files and their directory. Any of them being
// absent already is fine. Files it did not produce are left in place and make
// the directory removal fail.
func (c *Coordinator) Retire() error {
	log.Info("Removing temporary logger function")

	for _, name := range artifactFiles {
		path := filepath.Join(c.Dir(), name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: removing %s: %v", common.ErrArtifact, path, err)
		}
	}
	if err := os.Remove(c.Dir()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %v", common.ErrArtifact, c.Dir(), err)
	}
	return nil
}
