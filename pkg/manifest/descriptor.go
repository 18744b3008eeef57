package manifest

import (
	"reflect"
)

// ProcessDescriptor describes how to launch one supervised process
type ProcessDescriptor struct {
	Name        string            // Unique within the manifest
	Script      string            // Executable or script to launch
	Args        string            // Raw argument string, passed verbatim
	Interpreter string            // Runtime executing Script, empty to run Script directly
	Watch       *bool             // Pointer to distinguish unset from false
	Env         map[string]string // Overrides inherited variables of the same name
	Extra       map[string]any    // Supervisor-specific keys, kept as opaque data
}

// WatchEnabled reports the effective watch flag, false when unset
func (d ProcessDescriptor) WatchEnabled() bool {
	return d.Watch != nil && *d.Watch
}

// HasInterpreter reports whether Script is run through an interpreter.
// "none" is the conventional way to ask for direct execution.
func (d ProcessDescriptor) HasInterpreter() bool {
	return d.Interpreter != "" && d.Interpreter != InterpreterNone
}

const InterpreterNone = "none"

func (d ProcessDescriptor) clone() ProcessDescriptor {
	c := d
	if d.Watch != nil {
		watch := *d.Watch
		c.Watch = &watch
	}
	if d.Env != nil {
		c.Env = make(map[string]string, len(d.Env))
		for k, v := range d.Env {
			c.Env[k] = v
		}
	}
	if d.Extra != nil {
		c.Extra = cloneValue(d.Extra).(map[string]any)
	}
	return c
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return value
	}
}

// Manifest is the ordered, immutable collection of descriptors loaded from
// one configuration artifact. Accessors hand out copies.
type Manifest struct {
	source    string
	format    Format
	processes []ProcessDescriptor
	index     map[string]int
}

func newManifest(source string, format Format, processes []ProcessDescriptor) *Manifest {
	index := make(map[string]int, len(processes))
	for i, p := range processes {
		index[p.Name] = i
	}
	return &Manifest{
		source:    source,
		format:    format,
		processes: processes,
		index:     index,
	}
}

// Source is the file the manifest was loaded from, empty for parsed bytes
func (m *Manifest) Source() string {
	return m.source
}

func (m *Manifest) Format() Format {
	return m.format
}

func (m *Manifest) Len() int {
	return len(m.processes)
}

// Processes returns the descriptors in declaration order
func (m *Manifest) Processes() []ProcessDescriptor {
	out := make([]ProcessDescriptor, len(m.processes))
	for i, p := range m.processes {
		out[i] = p.clone()
	}
	return out
}

func (m *Manifest) Names() []string {
	names := make([]string, len(m.processes))
	for i, p := range m.processes {
		names[i] = p.Name
	}
	return names
}

func (m *Manifest) Get(name string) (ProcessDescriptor, bool) {
	i, ok := m.index[name]
	if !ok {
		return ProcessDescriptor{}, false
	}
	return m.processes[i].clone(), true
}

// Equal compares the descriptor sequences, ignoring where they were loaded from
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.processes) == 0 && len(other.processes) == 0 {
		return true
	}
	return reflect.DeepEqual(m.processes, other.processes)
}
