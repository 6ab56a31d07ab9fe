package codec

import (
	"strings"
)

// HeaderFormat is the column-name casing detected in a tabular file.
// Files keep the case they were written in; new files default to snake.
type HeaderFormat string

const (
	FormatSnake  HeaderFormat = "snake_case"
	FormatPascal HeaderFormat = "PascalCase"
)

// coreColumns is the canonical snake-case header order: the 20 core
// schema columns followed by external_id. Extension columns are appended
// after these, sorted ascending.
var coreColumns = []string{
	"req_id",
	"category",
	"subcategory",
	"requirement_text",
	"target_value",
	"test_module",
	"test_function",
	"validation_method",
	"status",
	"priority",
	"phase",
	"notes",
	"effort_weeks",
	"dependencies",
	"blocks",
	"assignee",
	"sprint",
	"started_date",
	"completed_date",
	"requirement_file",
	"external_id",
}

var (
	snakeToPascal = map[string]string{}
	pascalToSnake = map[string]string{}
)

func init() {
	for _, name := range coreColumns {
		pascal := pascalName(name)
		snakeToPascal[name] = pascal
		pascalToSnake[pascal] = name
	}
}

// pascalName converts a snake_case column name to the Req_ID style:
// each segment capitalized, "id" rendered as "ID".
func pascalName(snake string) string {
	parts := strings.Split(snake, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if p == "id" {
			parts[i] = "ID"
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "_")
}

// DetectHeaderFormat classifies a header row. Any canonical snake-case
// column claims the file for snake_case; any canonical PascalCase column
// claims it for PascalCase; an all-lowercase header of unknown columns
// reads as snake_case; everything else, including an empty header,
// defaults to PascalCase (the legacy layout).
func DetectHeaderFormat(fields []string) HeaderFormat {
	for _, f := range fields {
		if _, ok := snakeToPascal[f]; ok {
			return FormatSnake
		}
	}
	for _, f := range fields {
		if _, ok := pascalToSnake[f]; ok {
			return FormatPascal
		}
	}
	if len(fields) == 0 {
		return FormatPascal
	}
	for _, f := range fields {
		if f != strings.ToLower(f) {
			return FormatPascal
		}
	}
	return FormatSnake
}

// NormalizeColumnName converts a column name to the target format.
// Unknown columns pass through unchanged in either direction.
func NormalizeColumnName(name string, format HeaderFormat) string {
	switch format {
	case FormatSnake:
		if snake, ok := pascalToSnake[name]; ok {
			return snake
		}
	case FormatPascal:
		if pascal, ok := snakeToPascal[name]; ok {
			return pascal
		}
	}
	return name
}
