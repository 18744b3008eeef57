package manifest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/autoblog/autoblog-procman/pkg/errors"
	"github.com/autoblog/autoblog-procman/pkg/logging"
)

// DefaultManifestNames are tried in order by LoadDefaultManifest
var DefaultManifestNames = []string{
	"ecosystem.config.yaml",
	"ecosystem.config.yml",
	"ecosystem.config.json",
	"ecosystem.config.toml",
}

type loadOptions struct {
	strict bool
	logger logging.Logger
}

type LoadOption func(*loadOptions)

// WithStrict rejects unknown keys instead of passing them through as Extra
func WithStrict() LoadOption {
	return func(o *loadOptions) {
		o.strict = true
	}
}

func WithLogger(logger logging.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

func newLoadOptions(opts []LoadOption) loadOptions {
	options := loadOptions{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// LoadManifest reads, decodes and validates the manifest at filename.
// A missing file yields a NotFoundError, anything malformed a ConfigurationError.
func LoadManifest(filename string, opts ...LoadOption) (*Manifest, error) {
	options := newLoadOptions(opts)

	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("manifest file not found", err).WithContext("filename", filename)
		}
		return nil, errors.NewIOError("failed to read manifest file", err).WithContext("filename", filename)
	}

	manifest, err := parse(data, format, filename, options)
	if err != nil {
		return nil, err
	}

	options.logger.Infof("Manifest loaded, file: %s, format: %s, processes: %s",
		filename, format, strings.Join(manifest.Names(), ", "))
	return manifest, nil
}

// ParseManifest decodes and validates manifest bytes of the given format
func ParseManifest(data []byte, format Format, opts ...LoadOption) (*Manifest, error) {
	return parse(data, format, "", newLoadOptions(opts))
}

// LoadDefaultManifest loads the first of DefaultManifestNames present in dir
func LoadDefaultManifest(dir string, opts ...LoadOption) (*Manifest, error) {
	filename, err := FindManifest(dir)
	if err != nil {
		return nil, err
	}
	return LoadManifest(filename, opts...)
}

// FindManifest resolves the implicit file name convention in dir
func FindManifest(dir string) (string, error) {
	for _, name := range DefaultManifestNames {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", errors.NewIOError("failed to inspect manifest candidate", err).WithContext("filename", candidate)
		}
	}

	return "", errors.NewNotFoundError("no manifest file found", nil).
		WithContext("directory", dir).
		WithContext("candidates", strings.Join(DefaultManifestNames, ", "))
}

func parse(data []byte, format Format, source string, options loadOptions) (*Manifest, error) {
	document, err := decodeDocument(data, format)
	if err != nil {
		return nil, withSource(err, source)
	}

	entries, err := decodeProcesses(document, options.strict)

	errorCollection := errors.NewErrorCollection()
	errorCollection.Add(err)
	errorCollection.Add(validateEntries(entries))
	if err := errorCollection.ToError(); err != nil {
		return nil, withSource(errors.NewConfigurationError("invalid manifest", err), source)
	}

	processes := make([]ProcessDescriptor, len(entries))
	for i, entry := range entries {
		processes[i] = entry.descriptor
	}

	for _, p := range processes {
		for key := range p.Extra {
			options.logger.Debugf("Passing through supervisor-specific key, process: %s, key: %s", p.Name, key)
		}
	}

	return newManifest(source, format, processes), nil
}

func withSource(err error, source string) error {
	if source == "" {
		return err
	}
	if domainErr, ok := err.(*errors.DomainError); ok {
		return domainErr.WithContext("filename", source)
	}
	return err
}
