// Package cfn models the CloudFormation template being assembled for one
// deployment and synthesizes the resources that route every function's logs
// to the forwarder.
package cfn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/serverless-papertrail/log-forwarder/common"
)

// Resource types handled by the synthesizer.
const (
	TypeLogGroup           = "AWS::Logs::LogGroup"
	TypeSubscriptionFilter = "AWS::Logs::SubscriptionFilter"
	TypePermission         = "AWS::Lambda::Permission"
	TypeFunction           = "AWS::Lambda::Function"
)

// Resource is one entry of the Resources section. Attributes other than
// Type, Properties and DependsOn are carried through untouched.
type Resource struct {
	Type       string
	Properties map[string]interface{}
	DependsOn  []string

	extra map[string]json.RawMessage
}

// UnmarshalJSON accepts DependsOn as a single id or a list.
func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Resource{}
	for key, value := range raw {
		switch key {
		case "Type":
			if err := json.Unmarshal(value, &r.Type); err != nil {
				return fmt.Errorf("Type: %w", err)
			}
		case "Properties":
			dec := json.NewDecoder(bytes.NewReader(value))
			dec.UseNumber()
			if err := dec.Decode(&r.Properties); err != nil {
				return fmt.Errorf("Properties: %w", err)
			}
		case "DependsOn":
			var one string
			if err := json.Unmarshal(value, &one); err == nil {
				r.DependsOn = []string{one}
				continue
			}
			if err := json.Unmarshal(value, &r.DependsOn); err != nil {
				return fmt.Errorf("DependsOn: %w", err)
			}
		default:
			if r.extra == nil {
				r.extra = map[string]json.RawMessage{}
			}
			r.extra[key] = value
		}
	}
	return nil
}

// MarshalJSON writes the resource back including unknown attributes.
func (r Resource) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.extra)+3)
	for key, value := range r.extra {
		out[key] = value
	}
	out["Type"] = r.Type
	if r.Properties != nil {
		out["Properties"] = r.Properties
	}
	if len(r.DependsOn) > 0 {
		out["DependsOn"] = r.DependsOn
	}
	return json.Marshal(out)
}

// DependsOnID reports whether r declares a dependency on id.
func (r *Resource) DependsOnID(id string) bool {
	for _, dep := range r.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// ResourceSet maps logical ids to resources.
type ResourceSet map[string]*Resource

// Merge adds res under id. If id already holds a resource of the same type
// its properties are deep-merged (res wins) and DependsOn is unioned. A
// different type under the same id is never overwritten. created reports
// whether id was new.
func (s ResourceSet) Merge(id string, res *Resource) (created bool, err error) {
	existing, ok := s[id]
	if !ok || existing == nil {
		s[id] = res
		return true, nil
	}
	if existing.Type != res.Type {
		return false, fmt.Errorf("%w: resource %s already exists with type %s, refusing to replace it with %s",
			common.ErrSynthesis, id, existing.Type, res.Type)
	}
	if existing.Properties == nil {
		existing.Properties = map[string]interface{}{}
	}
	for key, value := range res.Properties {
		existing.Properties[key] = mergeValue(existing.Properties[key], value)
	}
	for _, dep := range res.DependsOn {
		if !existing.DependsOnID(dep) {
			existing.DependsOn = append(existing.DependsOn, dep)
		}
	}
	return false, nil
}

func mergeValue(dst, src interface{}) interface{} {
	dstMap, dstOK := dst.(map[string]interface{})
	srcMap, srcOK := src.(map[string]interface{})
	if !dstOK || !srcOK {
		return src
	}
	for key, value := range srcMap {
		dstMap[key] = mergeValue(dstMap[key], value)
	}
	return dstMap
}

// NormalizeRetention sets RetentionInDays on every log group in the set,
// including log groups this package did not create. It returns how many
// resources were touched.
func (s ResourceSet) NormalizeRetention(days int) int {
	n := 0
	for _, res := range s {
		if res == nil || res.Type != TypeLogGroup {
			continue
		}
		if res.Properties == nil {
			res.Properties = map[string]interface{}{}
		}
		res.Properties["RetentionInDays"] = days
		n++
	}
	return n
}

// IDsOfType returns the sorted logical ids of resources of type typ.
func (s ResourceSet) IDsOfType(typ string) []string {
	var ids []string
	for id, res := range s {
		if res != nil && res.Type == typ {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Template is a CloudFormation template. Sections other than Resources are
// kept as raw JSON.
type Template struct {
	Resources ResourceSet

	rest map[string]json.RawMessage
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Template{Resources: ResourceSet{}, rest: map[string]json.RawMessage{}}
	for key, value := range raw {
		if key == "Resources" {
			if err := json.Unmarshal(value, &t.Resources); err != nil {
				return fmt.Errorf("Resources: %w", err)
			}
			continue
		}
		t.rest[key] = value
	}
	if t.Resources == nil {
		t.Resources = ResourceSet{}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Template) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(t.rest)+1)
	for key, value := range t.rest {
		out[key] = value
	}
	out["Resources"] = t.Resources
	return json.Marshal(out)
}

// LoadTemplate reads a compiled template from path.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", path, err)
	}
	t := &Template{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: parsing template %s: %v", common.ErrSynthesis, path, err)
	}
	return t, nil
}

// Save writes the template to path as indented JSON.
func (t *Template) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
