package schema

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownSchemaError is returned by Get for unregistered schema names.
type UnknownSchemaError struct {
	Name      string
	Available []string
}

func (e *UnknownSchemaError) Error() string {
	available := append([]string(nil), e.Available...)
	sort.Strings(available)
	return fmt.Sprintf("schema %q not found. Available: %s", e.Name, strings.Join(available, ", "))
}
