package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/autoblog/autoblog-procman/pkg/errors"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a manifest file
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

const (
	keyApps        = "apps"
	keyName        = "name"
	keyScript      = "script"
	keyArgs        = "args"
	keyInterpreter = "interpreter"
	keyWatch       = "watch"
	keyEnv         = "env"
)

var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DetectFormat picks the format from the file extension
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.NewConfigurationError("unsupported manifest file extension", nil).
			WithContext("filename", filename).
			WithContext("supported_extensions", ".yaml, .yml, .json, .toml")
	}
}

// scalarLiteral is a non-string scalar kept as the text the author wrote,
// so 1.10 or 0x1F reach the environment unchanged
type scalarLiteral string

// decodeDocument turns raw bytes into a generic document.
// JSON is a subset of YAML, so both go through yaml.v3.
func decodeDocument(data []byte, format Format) (map[string]any, error) {
	var document map[string]any

	switch format {
	case FormatYAML, FormatJSON:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, errors.NewConfigurationError(fmt.Sprintf("failed to parse %s manifest", format), err)
		}
		if root.Kind == 0 {
			return nil, nil
		}
		if err := root.Decode(&document); err != nil {
			return nil, errors.NewConfigurationError(fmt.Sprintf("failed to parse %s manifest", format), err)
		}
		preserveEnvLiterals(&root, document)
	case FormatTOML:
		if err := toml.Unmarshal(data, &document); err != nil {
			return nil, errors.NewConfigurationError("failed to parse toml manifest", err)
		}
	default:
		return nil, errors.NewConfigurationError(fmt.Sprintf("unsupported manifest format: %s", format), nil)
	}

	return document, nil
}

// preserveEnvLiterals replaces decoded numbers and booleans under apps[*].env
// with their source text
func preserveEnvLiterals(root *yaml.Node, document map[string]any) {
	top := root
	if top.Kind == yaml.DocumentNode && len(top.Content) == 1 {
		top = top.Content[0]
	}

	appsNode := mappingValue(top, keyApps)
	apps, ok := document[keyApps].([]any)
	if appsNode == nil || appsNode.Kind != yaml.SequenceNode || !ok || len(apps) != len(appsNode.Content) {
		return
	}

	for i, appNode := range appsNode.Content {
		app, ok := apps[i].(map[string]any)
		if !ok {
			continue
		}
		envNode := mappingValue(appNode, keyEnv)
		env, ok := app[keyEnv].(map[string]any)
		if envNode == nil || !ok {
			continue
		}

		for j := 0; j+1 < len(envNode.Content); j += 2 {
			key, value := envNode.Content[j], envNode.Content[j+1]
			if value.Kind != yaml.ScalarNode {
				continue
			}
			switch value.ShortTag() {
			case "!!int", "!!float", "!!bool":
				env[key.Value] = scalarLiteral(value.Value)
			}
		}
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// decodedEntry is one mapping entry of the apps list. Entries that failed to
// decode are kept so their names still take part in validation.
type decodedEntry struct {
	index      int
	descriptor ProcessDescriptor
	failed     map[string]bool // keys whose value could not be decoded
}

// decodeProcesses converts the generic document into typed descriptors.
// Every shape problem is collected instead of stopping at the first one.
func decodeProcesses(document map[string]any, strict bool) ([]decodedEntry, error) {
	if document == nil {
		return nil, errors.NewConfigurationError("manifest is empty", nil)
	}

	rawApps, ok := document[keyApps]
	if !ok {
		return nil, errors.NewConfigurationError("manifest has no apps list", nil)
	}

	apps, ok := rawApps.([]any)
	if !ok && rawApps != nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("apps must be a list, got %s", describeType(rawApps)), nil)
	}

	errorCollection := errors.NewErrorCollection()

	if strict {
		for _, key := range sortedKeys(document) {
			if key != keyApps {
				errorCollection.Add(errors.NewConfigurationError(
					fmt.Sprintf("unknown top-level key '%s'", key), nil))
			}
		}
	}

	entries := make([]decodedEntry, 0, len(apps))
	for i, rawApp := range apps {
		app, ok := rawApp.(map[string]any)
		if !ok {
			errorCollection.Add(errors.NewConfigurationError(
				fmt.Sprintf("process entry must be a mapping, got %s", describeType(rawApp)), nil,
			).WithContext("process_index", strconv.Itoa(i)))
			continue
		}

		descriptor, failed, err := decodeDescriptor(app, strict)
		if err != nil {
			domainErr := errors.NewConfigurationError("invalid process entry", err).
				WithContext("process_index", strconv.Itoa(i))
			if descriptor.Name != "" {
				domainErr.WithContext("process_name", descriptor.Name)
			}
			errorCollection.Add(domainErr)
		}
		entries = append(entries, decodedEntry{index: i, descriptor: descriptor, failed: failed})
	}

	return entries, errorCollection.ToError()
}

func decodeDescriptor(app map[string]any, strict bool) (ProcessDescriptor, map[string]bool, error) {
	var descriptor ProcessDescriptor
	failed := make(map[string]bool)
	errorCollection := errors.NewErrorCollection()

	for _, key := range sortedKeys(app) {
		value := app[key]
		var err error

		switch key {
		case keyName:
			descriptor.Name, err = decodeString(key, value)
		case keyScript:
			descriptor.Script, err = decodeString(key, value)
		case keyArgs:
			descriptor.Args, err = decodeString(key, value)
		case keyInterpreter:
			descriptor.Interpreter, err = decodeString(key, value)
		case keyWatch:
			descriptor.Watch, err = decodeBool(key, value)
		case keyEnv:
			descriptor.Env, err = decodeEnv(value)
		default:
			if strict {
				err = errors.NewConfigurationError(fmt.Sprintf("unknown key '%s'", key), nil)
				break
			}
			if descriptor.Extra == nil {
				descriptor.Extra = make(map[string]any)
			}
			descriptor.Extra[key] = normalizeValue(value)
		}

		if err != nil {
			failed[key] = true
			errorCollection.Add(err)
		}
	}

	return descriptor, failed, errorCollection.ToError()
}

// normalizeValue widens integers to int64 so pass-through data decoded by
// yaml.v3 (int) and go-toml (int64) compares equal
func normalizeValue(v any) any {
	switch value := v.(type) {
	case int:
		return int64(value)
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return value
	}
}

func decodeString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", errors.NewConfigurationError(
			fmt.Sprintf("'%s' must be a string, got %s", key, describeType(value)), nil)
	}
	return s, nil
}

func decodeBool(key string, value any) (*bool, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("'%s' must be a boolean, got %s", key, describeType(value)), nil)
	}
	return &b, nil
}

func decodeEnv(value any) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}

	raw, ok := value.(map[string]any)
	if !ok {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("'env' must be a mapping, got %s", describeType(value)), nil)
	}

	errorCollection := errors.NewErrorCollection()
	env := make(map[string]string, len(raw))

	for _, name := range sortedKeys(raw) {
		if !envKeyPattern.MatchString(name) {
			errorCollection.Add(errors.NewConfigurationError(
				fmt.Sprintf("invalid environment variable name '%s'", name), nil))
			continue
		}

		s, ok := scalarString(raw[name])
		if !ok {
			errorCollection.Add(errors.NewConfigurationError(
				fmt.Sprintf("environment variable '%s' must be a scalar, got %s", name, describeType(raw[name])), nil))
			continue
		}
		env[name] = s
	}

	return env, errorCollection.ToError()
}

// scalarString renders an env value. YAML and JSON numbers and booleans
// arrive as scalarLiteral; TOML values are already typed by go-toml, so they
// are printed in canonical form (0x1F becomes 31, 1.10 becomes 1.1).
func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case scalarLiteral:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

func describeType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64, float64, scalarLiteral:
		return "number"
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// sortedKeys gives deterministic error ordering; map order is not meaningful here
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
