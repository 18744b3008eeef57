package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/autoblog/autoblog-procman/pkg/errors"
)

// ValidateProcesses checks the manifest-wide invariants on decoded descriptors:
// non-empty name and script, and unique names.
func ValidateProcesses(processes []ProcessDescriptor) error {
	entries := make([]decodedEntry, len(processes))
	for i, process := range processes {
		entries[i] = decodedEntry{index: i, descriptor: process}
	}
	return validateEntries(entries)
}

// validateEntries skips the required-field check for keys that already failed
// to decode, so each problem is reported once
func validateEntries(entries []decodedEntry) error {
	errorCollection := errors.NewErrorCollection()

	seenNames := make(map[string]int)
	for _, entry := range entries {
		i, process := entry.index, entry.descriptor

		if !entry.failed[keyName] {
			if err := ValidateProcessName(process.Name); err != nil {
				errorCollection.Add(errors.NewConfigurationError(
					fmt.Sprintf("invalid process name at index %d", i),
					err,
				).WithContext("process_index", strconv.Itoa(i)))
			}
		}

		if !entry.failed[keyScript] && strings.TrimSpace(process.Script) == "" {
			errorCollection.Add(errors.NewConfigurationError(
				fmt.Sprintf("process at index %d has no script", i),
				nil,
			).WithContext("process_name", process.Name))
		}

		if process.Name == "" {
			continue
		}
		if prevIndex, exists := seenNames[process.Name]; exists {
			errorCollection.Add(errors.NewConfigurationError(
				fmt.Sprintf("duplicate process name '%s' found at indices %d and %d", process.Name, prevIndex, i),
				nil,
			))
			continue
		}
		seenNames[process.Name] = i
	}

	return errorCollection.ToError()
}

// ValidateProcessName rejects empty names and names that cannot be used as a
// single display token by a supervisor
func ValidateProcessName(name string) error {
	if name == "" {
		return errors.NewConfigurationError("process name is required", nil)
	}
	if strings.TrimSpace(name) != name {
		return errors.NewConfigurationError("process name has leading or trailing whitespace", nil).
			WithContext("process_name", name)
	}
	if strings.ContainsAny(name, "\n\r\t") {
		return errors.NewConfigurationError("process name contains control characters", nil).
			WithContext("process_name", name)
	}
	return nil
}
