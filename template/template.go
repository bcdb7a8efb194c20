// Package template renders the forwarder identity into the artifact shipped
// with the forwarder function, and reads it back at runtime.
package template

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// Placeholder tokens understood by Values.
const (
	PlaceholderHost     = "papertrailHost"
	PlaceholderPort     = "papertrailPort"
	PlaceholderHostname = "papertrailHostname"
	PlaceholderProgram  = "papertrailProgram"
)

// Default is the forwarder identity template.
//
//go:embed forwarder.yaml.tmpl
var Default string

var placeholderRegex = regexp.MustCompile(`%([A-Za-z][A-Za-z0-9]*)%`)

// Values maps the placeholder tokens to the identity fields.
func Values(id common.ForwarderIdentity) map[string]string {
	return map[string]string{
		PlaceholderHost:     id.SinkHost,
		PlaceholderPort:     id.SinkPort,
		PlaceholderHostname: id.Hostname,
		PlaceholderProgram:  id.Program,
	}
}

// Render substitutes every %token% in src with values[token]. The rest of the
// text is left byte for byte. A token without a non-empty value is a
// configuration error and nothing is rendered.
func Render(src string, values map[string]string) (string, error) {
	var missing []string
	seen := map[string]bool{}
	for _, m := range placeholderRegex.FindAllStringSubmatch(src, -1) {
		token := m[1]
		if seen[token] {
			continue
		}
		seen[token] = true
		if values[token] == "" {
			missing = append(missing, token)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: no value for template placeholder(s) %s", common.ErrConfiguration, strings.Join(missing, ", "))
	}

	return placeholderRegex.ReplaceAllStringFunc(src, func(m string) string {
		return values[strings.Trim(m, "%")]
	}), nil
}

// ParseIdentity reads a rendered identity document.
func ParseIdentity(data []byte) (common.ForwarderIdentity, error) {
	var id common.ForwarderIdentity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return id, fmt.Errorf("%w: parsing forwarder identity: %v", common.ErrConfiguration, err)
	}
	if id.SinkPort == "" {
		return id, fmt.Errorf("%w: forwarder identity has no sink port", common.ErrConfiguration)
	}
	if id.SinkHost == "" {
		id.SinkHost = common.DefaultSinkHost
	}
	return id, nil
}

// LoadIdentity reads the rendered identity file at path.
func LoadIdentity(path string) (common.ForwarderIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.ForwarderIdentity{}, fmt.Errorf("%w: reading forwarder identity: %v", common.ErrConfiguration, err)
	}
	return ParseIdentity(data)
}
