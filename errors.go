package freeplay

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoTemplateSelector indicates FetchTemplate was called without a usable
// template identifier.
var ErrNoTemplateSelector = errors.New("template query requires either a template id with a version id, or a name")

// ErrAmbiguousTemplateSelector indicates FetchTemplate was given both an
// id+version pair and a name.
var ErrAmbiguousTemplateSelector = errors.New("template query must identify the template by id+version or by name, not both")

// ConfigurationError reports every required setting missing from a Config,
// using the environment-variable names callers are expected to set.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}
