package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/autoblog/autoblog-procman/pkg/launch"
	"github.com/autoblog/autoblog-procman/pkg/logging"
	"github.com/autoblog/autoblog-procman/pkg/logging/zaplogging"
	"github.com/autoblog/autoblog-procman/pkg/manifest"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Config   string `long:"config" short:"c" description:"Manifest file path (YAML, JSON or TOML); defaults to ecosystem.config.* in the working directory"`
	LogLevel string `long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"warn"`
	Strict   bool   `long:"strict" description:"Reject keys the manifest schema does not know"`
}

type app struct {
	opts   globalOptions
	out    io.Writer
	logger logging.Logger

	// overridable in tests
	environ      func() []string
	watchContext func() (context.Context, context.CancelFunc)
}

func newApp(out io.Writer) *app {
	return &app{
		out:     out,
		environ: os.Environ,
		watchContext: func() (context.Context, context.CancelFunc) {
			return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		},
	}
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

func (a *app) register(parser *flags.Parser) {
	parser.AddCommand("validate", "Validate a manifest",
		"Load the manifest and report every problem found.", &validateCommand{app: a})
	parser.AddCommand("show", "Show declared processes",
		"Print every process descriptor in declaration order.", &showCommand{app: a})
	parser.AddCommand("plan", "Show launch plans",
		"Print the command line and environment each process would be started with.", &planCommand{app: a})
	parser.AddCommand("watch", "Watch a manifest for changes",
		"Reload the manifest whenever the file changes and report the result.", &watchCommand{app: a})
}

func (a *app) init() (func(), error) {
	if a.logger != nil {
		return func() {}, nil
	}
	logger, sync, err := zaplogging.NewLogger(logPrefix("procmanifest"), a.opts.LogLevel)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	return sync, nil
}

func (a *app) loadOptions() []manifest.LoadOption {
	opts := []manifest.LoadOption{manifest.WithLogger(a.logger)}
	if a.opts.Strict {
		opts = append(opts, manifest.WithStrict())
	}
	return opts
}

func (a *app) manifestPath() (string, error) {
	if a.opts.Config != "" {
		return a.opts.Config, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return manifest.FindManifest(wd)
}

func (a *app) load() (*manifest.Manifest, error) {
	path, err := a.manifestPath()
	if err != nil {
		return nil, err
	}
	return manifest.LoadManifest(path, a.loadOptions()...)
}

type validateCommand struct {
	app *app
}

func (c *validateCommand) Execute(args []string) error {
	sync, err := c.app.init()
	if err != nil {
		return err
	}
	defer sync()

	m, err := c.app.load()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.app.out, "%s: ok, %d processes\n", m.Source(), m.Len())
	return nil
}

type showCommand struct {
	app *app
}

func (c *showCommand) Execute(args []string) error {
	sync, err := c.app.init()
	if err != nil {
		return err
	}
	defer sync()

	m, err := c.app.load()
	if err != nil {
		return err
	}

	for i, p := range m.Processes() {
		if i > 0 {
			fmt.Fprintln(c.app.out)
		}
		fmt.Fprintf(c.app.out, "name:        %s\n", p.Name)
		fmt.Fprintf(c.app.out, "script:      %s\n", p.Script)
		if p.Args != "" {
			fmt.Fprintf(c.app.out, "args:        %s\n", p.Args)
		}
		if p.Interpreter != "" {
			fmt.Fprintf(c.app.out, "interpreter: %s\n", p.Interpreter)
		}
		if p.Watch != nil {
			fmt.Fprintf(c.app.out, "watch:       %t\n", *p.Watch)
		}
		for _, key := range sortedKeys(p.Env) {
			fmt.Fprintf(c.app.out, "env:         %s=%s\n", key, p.Env[key])
		}
		for _, key := range sortedKeys(p.Extra) {
			fmt.Fprintf(c.app.out, "extra:       %s=%v\n", key, p.Extra[key])
		}
	}
	return nil
}

type planCommand struct {
	app *app

	Clean bool `long:"clean-env" description:"Do not inherit the current environment"`
}

func (c *planCommand) Execute(args []string) error {
	sync, err := c.app.init()
	if err != nil {
		return err
	}
	defer sync()

	m, err := c.app.load()
	if err != nil {
		return err
	}

	var baseEnv []string
	if !c.Clean {
		baseEnv = c.app.environ()
	}

	plans, err := launch.PlanAll(m, baseEnv)
	if err != nil {
		return err
	}

	for i, plan := range plans {
		if i > 0 {
			fmt.Fprintln(c.app.out)
		}
		fmt.Fprintf(c.app.out, "[%s]\n", plan.Name)
		fmt.Fprintf(c.app.out, "command: %s\n", plan.CommandLine())
		p, _ := m.Get(plan.Name)
		for _, key := range sortedKeys(p.Env) {
			fmt.Fprintf(c.app.out, "env:     %s=%s\n", key, p.Env[key])
		}
	}
	return nil
}

type watchCommand struct {
	app *app
}

func (c *watchCommand) Execute(args []string) error {
	sync, err := c.app.init()
	if err != nil {
		return err
	}
	defer sync()

	path, err := c.app.manifestPath()
	if err != nil {
		return err
	}

	watcher := manifest.NewWatcher(path, c.app.logger, manifest.WithLoadOptions(c.app.loadOptions()...))
	watcher.OnReload(func(m *manifest.Manifest) {
		fmt.Fprintf(c.app.out, "reloaded %s: %s\n", m.Source(), strings.Join(m.Names(), ", "))
	})

	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	current := watcher.Current()
	fmt.Fprintf(c.app.out, "watching %s: %s\n", current.Source(), strings.Join(current.Names(), ", "))

	ctx, cancel := c.app.watchContext()
	defer cancel()
	<-ctx.Done()
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
