// Package codec reads and writes the persisted tabular form of a
// requirement database: RFC 4180 CSV with a required header, snake_case
// or legacy PascalCase column names, pipe-delimited list cells, and
// True/False booleans. Writes are atomic (temp file + rename).
package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rtmx-ai/rtmx/internal/logging"
	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// ErrBadTable is returned when the input cannot be parsed as a
// requirement table: missing header, no data rows, or CSV the reader
// cannot recover. Messages carry the path and, where known, the line.
var ErrBadTable = errors.New("bad requirement table")

// DefaultDatabaseName is the conventional database location relative to a
// project root.
const DefaultDatabaseName = "docs/rtm_database.csv"

// =============================================================================
// LOAD
// =============================================================================

// Load reads a requirement table and reports the header format it was
// written in, so saves can preserve the file's casing.
func Load(path string) ([]*rtm.Requirement, HeaderFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FormatSnake, fmt.Errorf("%w: %s: %v", ErrBadTable, path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, FormatSnake, fmt.Errorf("%w: %s: missing header", ErrBadTable, path)
	}
	if err != nil {
		return nil, FormatSnake, badTableErr(path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	format := DetectHeaderFormat(header)

	// Normalize the header to canonical snake_case for field lookup.
	normalized := make([]string, len(header))
	for i, name := range header {
		normalized[i] = NormalizeColumnName(name, FormatSnake)
	}

	var requirements []*rtm.Requirement
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, format, badTableErr(path, err)
		}
		row := make(map[string]string, len(normalized))
		for i, name := range normalized {
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		req := requirementFromRow(row)
		if req.ReqID == "" {
			return nil, format, fmt.Errorf("%w: %s: line %d: row has no req_id", ErrBadTable, path, line)
		}
		requirements = append(requirements, req)
	}

	if len(requirements) == 0 {
		return nil, format, fmt.Errorf("%w: %s: no data rows after header", ErrBadTable, path)
	}
	logging.Get(logging.CategoryCodec).Debugw("loaded requirement table",
		"path", path, "rows", len(requirements), "format", string(format))
	return requirements, format, nil
}

// LoadDatabase loads a table into a database, recording its source path.
func LoadDatabase(path string) (*rtm.Database, error) {
	requirements, _, err := Load(path)
	if err != nil {
		return nil, err
	}
	db := rtm.NewDatabase(requirements)
	db.SetPath(path)
	return db, nil
}

func badTableErr(path string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: %s: line %d: %v", ErrBadTable, path, parseErr.Line, parseErr.Err)
	}
	return fmt.Errorf("%w: %s: %v", ErrBadTable, path, err)
}

func requirementFromRow(row map[string]string) *rtm.Requirement {
	req := rtm.NewRequirement(row["req_id"])
	req.Category = row["category"]
	req.Subcategory = row["subcategory"]
	req.RequirementText = row["requirement_text"]
	req.TargetValue = row["target_value"]
	req.TestModule = row["test_module"]
	req.TestFunction = row["test_function"]
	req.ValidationMethod = row["validation_method"]
	req.Status = rtm.ParseStatus(row["status"])
	req.Priority = rtm.ParsePriority(row["priority"])
	req.Notes = row["notes"]
	req.Assignee = row["assignee"]
	req.Sprint = row["sprint"]
	req.StartedDate = row["started_date"]
	req.CompletedDate = row["completed_date"]
	req.RequirementFile = row["requirement_file"]
	req.ExternalID = row["external_id"]
	req.Dependencies = rtm.ParseRefList(row["dependencies"])
	req.Blocks = rtm.ParseRefList(row["blocks"])

	if v := row["phase"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Phase = &n
		}
	}
	if v := row["effort_weeks"]; v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			req.EffortWeeks = &f
		}
	}

	known := make(map[string]struct{}, len(coreColumns))
	for _, c := range coreColumns {
		known[c] = struct{}{}
	}
	for name, value := range row {
		if _, ok := known[name]; !ok {
			req.Extra[name] = value
		}
	}
	return req
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes requirements in the canonical snake_case layout.
func Save(requirements []*rtm.Requirement, path string) error {
	return SaveWithFormat(requirements, path, FormatSnake)
}

// SaveDatabase writes a database back to its source path (or the given
// override) in the canonical column order. When the target file already
// exists its header casing is kept; a new file is written in snake_case.
func SaveDatabase(db *rtm.Database, path string) error {
	if path == "" {
		path = db.Path()
	}
	if path == "" {
		return fmt.Errorf("no save path specified and database was not loaded from file")
	}
	format := FormatSnake
	if f, err := os.Open(path); err == nil {
		header, readErr := csv.NewReader(f).Read()
		f.Close()
		if readErr == nil {
			for i := range header {
				header[i] = strings.TrimSpace(header[i])
			}
			format = DetectHeaderFormat(header)
		}
	}
	if err := SaveWithFormat(db.All(), path, format); err != nil {
		return err
	}
	db.SetPath(path)
	return nil
}

// SaveWithFormat writes requirements with the given header casing.
// The column order is canonical: the core columns, then extension columns
// sorted ascending. Parent directories are created and the write is
// atomic: content goes to a temp file that is renamed over the target.
func SaveWithFormat(requirements []*rtm.Requirement, path string, format HeaderFormat) error {
	extras := map[string]struct{}{}
	for _, req := range requirements {
		for k := range req.Extra {
			extras[k] = struct{}{}
		}
	}
	extraColumns := make([]string, 0, len(extras))
	for k := range extras {
		extraColumns = append(extraColumns, k)
	}
	sort.Strings(extraColumns)
	columns := append(append([]string{}, coreColumns...), extraColumns...)

	header := make([]string, len(columns))
	for i, name := range columns {
		header[i] = NormalizeColumnName(name, format)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".rtm_database-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, req := range requirements {
		row := rowFromRequirement(req)
		record := make([]string, len(columns))
		for i, name := range columns {
			record[i] = row[name]
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write row for %s: %w", req.ReqID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	logging.Get(logging.CategoryCodec).Debugw("saved requirement table",
		"path", path, "rows", len(requirements), "format", string(format))
	return nil
}

func rowFromRequirement(req *rtm.Requirement) map[string]string {
	row := map[string]string{
		"req_id":            req.ReqID,
		"category":          req.Category,
		"subcategory":       req.Subcategory,
		"requirement_text":  req.RequirementText,
		"target_value":      req.TargetValue,
		"test_module":       req.TestModule,
		"test_function":     req.TestFunction,
		"validation_method": req.ValidationMethod,
		"status":            string(req.Status),
		"priority":          string(req.Priority),
		"notes":             req.Notes,
		"dependencies":      rtm.FormatRefList(req.Dependencies),
		"blocks":            rtm.FormatRefList(req.Blocks),
		"assignee":          req.Assignee,
		"sprint":            req.Sprint,
		"started_date":      req.StartedDate,
		"completed_date":    req.CompletedDate,
		"requirement_file":  req.RequirementFile,
		"external_id":       req.ExternalID,
	}
	if req.Phase != nil {
		row["phase"] = strconv.Itoa(*req.Phase)
	} else {
		row["phase"] = ""
	}
	if req.EffortWeeks != nil {
		row["effort_weeks"] = strconv.FormatFloat(*req.EffortWeeks, 'f', -1, 64)
	} else {
		row["effort_weeks"] = ""
	}
	for k, v := range req.Extra {
		row[k] = normalizeBoolCell(v)
	}
	return row
}

// normalizeBoolCell canonicalizes boolean cells to True/False. Other
// values pass through untouched.
func normalizeBoolCell(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true":
		return "True"
	case "false":
		return "False"
	}
	return v
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Find searches upward from start for the conventional database location.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, filepath.FromSlash(DefaultDatabaseName))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find RTM database searching upward from %s", start)
		}
		dir = parent
	}
}
