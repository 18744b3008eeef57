// Package launch turns process descriptors into the concrete command line and
// environment a supervisor would use to start them. Nothing here starts or
// supervises a process.
package launch

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/autoblog/autoblog-procman/pkg/errors"
	"github.com/autoblog/autoblog-procman/pkg/manifest"

	"github.com/google/shlex"
)

// Plan is the resolved launch of one descriptor
type Plan struct {
	Name  string
	Argv  []string // Argv[0] is the program to execute
	Env   []string // KEY=VALUE, sorted by key
	Watch bool
}

// NewPlan resolves desc against the inherited environment baseEnv (KEY=VALUE
// entries, as returned by os.Environ)
func NewPlan(desc manifest.ProcessDescriptor, baseEnv []string) (*Plan, error) {
	args, err := SplitArgs(desc.Args)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to split process arguments", err).
			WithContext("process_name", desc.Name).
			WithContext("args", desc.Args)
	}

	argv := make([]string, 0, len(args)+2)
	if desc.HasInterpreter() {
		argv = append(argv, desc.Interpreter)
	}
	argv = append(argv, desc.Script)
	argv = append(argv, args...)

	return &Plan{
		Name:  desc.Name,
		Argv:  argv,
		Env:   MergeEnv(baseEnv, desc.Env),
		Watch: desc.WatchEnabled(),
	}, nil
}

// PlanAll resolves every descriptor of m in declaration order
func PlanAll(m *manifest.Manifest, baseEnv []string) ([]*Plan, error) {
	errorCollection := errors.NewErrorCollection()

	plans := make([]*Plan, 0, m.Len())
	for _, desc := range m.Processes() {
		plan, err := NewPlan(desc, baseEnv)
		if err != nil {
			errorCollection.Add(err)
			continue
		}
		plans = append(plans, plan)
	}

	if err := errorCollection.ToError(); err != nil {
		return nil, err
	}
	return plans, nil
}

// Command builds, without starting, the exec.Cmd for the plan
func (p *Plan) Command(ctx context.Context, dir string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.Argv[0], p.Argv[1:]...)
	cmd.Env = append([]string(nil), p.Env...)
	cmd.Dir = dir
	return cmd
}

// CommandLine renders Argv as a shell-safe string for display
func (p *Plan) CommandLine() string {
	quoted := make([]string, len(p.Argv))
	for i, arg := range p.Argv {
		quoted[i] = quoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func (p *Plan) Lookup(key string) (string, bool) {
	prefix := key + "="
	for _, kv := range p.Env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

// SplitArgs splits a raw argument string with POSIX shell quoting rules
func SplitArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	args, err := shlex.Split(raw)
	if err != nil {
		return nil, err
	}
	return args, nil
}

// MergeEnv overlays overrides on base. Later duplicates in base win, as they
// do for exec, and overrides win over everything.
func MergeEnv(base []string, overrides map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	env := make([]string, len(keys))
	for i, key := range keys {
		env[i] = fmt.Sprintf("%s=%s", key, merged[key])
	}
	return env
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n\"'\\$`|&;<>()*?[]#~") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
