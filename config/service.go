// Package config loads the subset of a serverless service definition that the
// forwarder deployment needs: service name, stage, tags, functions and the
// custom.papertrail section.
package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// DefaultStage is used when provider.stage is not set.
const DefaultStage = "dev"

// Service is a serverless service definition.
type Service struct {
	Service   string               `yaml:"service"`
	Provider  Provider             `yaml:"provider"`
	Custom    Custom               `yaml:"custom,omitempty"`
	Functions map[string]*Function `yaml:"functions,omitempty"`

	// Rest keeps top-level keys this package does not model so Save does not lose them.
	Rest map[string]yaml.Node `yaml:",inline"`
}

// Provider holds the provider-level settings.
type Provider struct {
	Name      string            `yaml:"name,omitempty"`
	Runtime   string            `yaml:"runtime,omitempty"`
	Stage     string            `yaml:"stage,omitempty"`
	Region    string            `yaml:"region,omitempty"`
	StackTags map[string]string `yaml:"stackTags,omitempty"`

	Rest map[string]yaml.Node `yaml:",inline"`
}

// Custom holds the custom section; only papertrail is interpreted.
type Custom struct {
	Papertrail *Papertrail `yaml:"papertrail,omitempty"`

	Rest map[string]yaml.Node `yaml:",inline"`
}

// Papertrail configures the sink and the subscription scope.
type Papertrail struct {
	Host string `yaml:"host,omitempty"`
	// Port is kept as a string so that both `port: 12345` and `port: "12345"` load.
	Port    string   `yaml:"port,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"` // glob patterns on function logical names
}

// Function is one entry under functions.
type Function struct {
	Handler string            `yaml:"handler"`
	Name    string            `yaml:"name,omitempty"`
	Tags    map[string]string `yaml:"tags,omitempty"`
	Events  []yaml.Node       `yaml:"events"`

	Rest map[string]yaml.Node `yaml:",inline"`
}

// LoadService reads and parses a service definition from path.
func LoadService(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading service definition %s: %w", path, err)
	}
	return ParseService(data)
}

// ParseService parses a service definition document.
func ParseService(data []byte) (*Service, error) {
	svc := &Service{}
	if err := yaml.Unmarshal(data, svc); err != nil {
		return nil, fmt.Errorf("%w: parsing service definition: %v", common.ErrConfiguration, err)
	}
	if svc.Functions == nil {
		svc.Functions = map[string]*Function{}
	}
	return svc, nil
}

// Save writes the service definition back to path.
func (s *Service) Save(path string) error {
	buf := &bytes.Buffer{}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding service definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding service definition: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate fails fast on settings the deployment cannot proceed without.
func (s *Service) Validate() error {
	if s.Service == "" {
		return fmt.Errorf("%w: service name is required", common.ErrConfiguration)
	}
	if s.Custom.Papertrail == nil || s.Custom.Papertrail.Port == "" {
		return fmt.Errorf("%w: configure Papertrail port in custom.papertrail.port of the serverless.yml", common.ErrConfiguration)
	}
	port, err := strconv.Atoi(s.Custom.Papertrail.Port)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: custom.papertrail.port %q is not a valid port", common.ErrConfiguration, s.Custom.Papertrail.Port)
	}
	return nil
}

// Stage returns provider.stage or DefaultStage.
func (s *Service) Stage() string {
	if s.Provider.Stage == "" {
		return DefaultStage
	}
	return s.Provider.Stage
}

// FunctionName returns the deployed name of the function declared under name.
// An explicit name wins over the <service>-<stage>-<name> convention.
func (s *Service) FunctionName(name string) string {
	if fn, ok := s.Functions[name]; ok && fn != nil && fn.Name != "" {
		return fn.Name
	}
	return fmt.Sprintf("%s-%s-%s", s.Service, s.Stage(), name)
}

// FunctionNames returns the declared function names in sorted order.
func (s *Service) FunctionNames() []string {
	names := make([]string, 0, len(s.Functions))
	for name := range s.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Identity derives the forwarder identity: the sink from custom.papertrail,
// the hostname label from the service and the program label from the stage.
func (s *Service) Identity() common.ForwarderIdentity {
	id := common.ForwarderIdentity{
		SinkHost: common.DefaultSinkHost,
		Hostname: s.Service,
		Program:  s.Stage(),
	}
	if s.Custom.Papertrail != nil {
		if s.Custom.Papertrail.Host != "" {
			id.SinkHost = s.Custom.Papertrail.Host
		}
		id.SinkPort = s.Custom.Papertrail.Port
	}
	return id
}

// Excludes returns the configured subscription exclusion patterns.
func (s *Service) Excludes() []string {
	if s.Custom.Papertrail == nil {
		return nil
	}
	return s.Custom.Papertrail.Exclude
}

// StackTags returns a copy of provider.stackTags, never nil.
func (s *Service) StackTags() map[string]string {
	tags := make(map[string]string, len(s.Provider.StackTags))
	for k, v := range s.Provider.StackTags {
		tags[k] = v
	}
	return tags
}
