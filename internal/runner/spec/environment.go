package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar is one NAME=VALUE pair passed into the container.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// String renders the pair in NAME=VALUE form.
func (v EnvVar) String() string {
	return v.Name + "=" + v.Value
}

// Environment is an ordered list of variables. Order is preserved all the
// way into the launch argument vector.
type Environment []EnvVar

// ParseEnvVar parses a NAME=VALUE string. The value may be empty.
func ParseEnvVar(raw string) (EnvVar, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return EnvVar{}, fmt.Errorf("environment entry %q must be NAME=VALUE", raw)
	}
	v := EnvVar{Name: name, Value: value}
	if err := v.validate(); err != nil {
		return EnvVar{}, err
	}
	return v, nil
}

// EnvironmentFromMap converts a map into an Environment sorted by name,
// since Go maps carry no order of their own.
func EnvironmentFromMap(m map[string]string) Environment {
	if len(m) == 0 {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	env := make(Environment, 0, len(names))
	for _, name := range names {
		env = append(env, EnvVar{Name: name, Value: m[name]})
	}
	return env
}

// Validate checks every entry has a usable name.
func (e Environment) Validate() error {
	for _, v := range e {
		if err := v.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (v EnvVar) validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("environment variable name is required")
	}
	if strings.ContainsAny(v.Name, "= \t\n") {
		return fmt.Errorf("invalid environment variable name %q", v.Name)
	}
	return nil
}

// UnmarshalYAML accepts either a mapping (NAME: VALUE, document order kept)
// or a sequence of {name, value} objects.
func (e *Environment) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(Environment, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var name, value string
			if err := node.Content[i].Decode(&name); err != nil {
				return err
			}
			if err := node.Content[i+1].Decode(&value); err != nil {
				return fmt.Errorf("environment %q: %w", name, err)
			}
			out = append(out, EnvVar{Name: name, Value: value})
		}
		*e = out
		return nil
	case yaml.SequenceNode:
		var list []EnvVar
		if err := node.Decode(&list); err != nil {
			return err
		}
		*e = list
		return nil
	default:
		return fmt.Errorf("environment must be a mapping or a list, got line %d", node.Line)
	}
}

// UnmarshalJSON accepts either an object (key order kept) or an array of
// {name, value} objects.
func (e *Environment) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = nil
		return nil
	}
	if trimmed[0] == '[' {
		var list []EnvVar
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*e = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("environment must be an object or an array")
	}
	var out Environment
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("environment %q: %w", name, err)
		}
		out = append(out, EnvVar{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*e = out
	return nil
}
