package errors

import (
	"strings"
)

// ErrorCollection accumulates several errors so they can be reported at once
type ErrorCollection struct {
	Errors []error
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

func (c *ErrorCollection) Add(err error) {
	if err == nil {
		return
	}
	c.Errors = append(c.Errors, err)
}

func (c *ErrorCollection) HasErrors() bool {
	return len(c.Errors) > 0
}

// ToError returns nil for an empty collection, the single error for a
// collection of one, and the collection itself otherwise
func (c *ErrorCollection) ToError() error {
	switch len(c.Errors) {
	case 0:
		return nil
	case 1:
		return c.Errors[0]
	default:
		return c
	}
}

func (c *ErrorCollection) Error() string {
	messages := make([]string, 0, len(c.Errors))
	for _, err := range c.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (c *ErrorCollection) Unwrap() []error {
	return c.Errors
}
