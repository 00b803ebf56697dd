// -----------------------------------------------------------------------
// Schema Enforcer - recover a fixed-schema table from untrusted LLM text
// -----------------------------------------------------------------------

package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recon/internal/models"
)

// ErrSchemaRecovery is returned when a response cannot be aligned to the expected
// schema even after row-level repair.
var ErrSchemaRecovery = errors.New("schema recovery failed")

const delimiter = ","

var (
	// fenceLine matches a whole line that opens or closes a code fence,
	// e.g. "```", "```csv", "~~~ text".
	fenceLine = regexp.MustCompile("^[ \t]*(`{3,}|~{3,})[ \t]*[A-Za-z0-9_+.-]*[ \t]*$")

	// leadingFence matches a fence glued to the start of the first content line. A
	// lowercase language tag is only consumed when followed by whitespace, so
	// "```Ref 1,..." keeps its header.
	leadingFence = regexp.MustCompile("^[ \t]*(?:`{3,}|~{3,})(?:[a-z0-9_+.-]+(?:[ \t]+|$))?")

	// trailingFence matches a fence glued to the end of the last content line.
	trailingFence = regexp.MustCompile("[ \t]*(?:`{3,}|~{3,})[ \t]*$")
)

// Anomaly records an enumerated cell whose value is outside the allowed set.
type Anomaly = models.Anomaly

// Result is the outcome of enforcing a schema on a response.
type Result struct {
	Table          *models.Table
	HeaderInserted bool
	Repaired       bool
	Anomalies      []Anomaly
}

// Enforcer converts free-form delimited text into a table that matches a schema
// exactly. It holds no per-call state and is safe to share.
type Enforcer struct {
	logger arbor.ILogger
}

// NewEnforcer creates a schema enforcer.
func NewEnforcer(logger arbor.ILogger) *Enforcer {
	return &Enforcer{logger: logger}
}

// Enforce strips code fences, ensures the header is present, parses strictly and
// falls back to row-level repair when the strict parse fails. Enumerated columns are
// normalized afterwards.
func (e *Enforcer) Enforce(raw string, schema models.Schema) (*Result, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaRecovery, err)
	}

	text := StripFences(raw)
	result := &Result{}

	text, result.HeaderInserted = ensureHeader(text, schema)

	records, err := parseStrict(text, schema.Width(), false)
	if err != nil {
		e.logger.Debug().
			Err(err).
			Str("schema", schema.Name).
			Msg("Strict parse failed, repairing rows")

		repaired := RepairRows(text, schema.Width())
		records, err = parseStrict(repaired, schema.Width(), true)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSchemaRecovery, schema.Name, err)
		}
		result.Repaired = true
	}

	table, err := buildTable(records, schema)
	if err != nil {
		return nil, err
	}

	result.Anomalies = normalizeEnums(table, schema)
	result.Table = table

	e.logger.Debug().
		Str("schema", schema.Name).
		Int("rows", table.Len()).
		Bool("header_inserted", result.HeaderInserted).
		Bool("repaired", result.Repaired).
		Int("anomalies", len(result.Anomalies)).
		Msg("Schema enforced")

	return result, nil
}

// StripFences removes code-fence lines (with or without a language tag), fences
// glued to the first or last content line, and surrounding whitespace.
func StripFences(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if fenceLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	first, last := -1, -1
	for i, line := range kept {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first >= 0 {
		kept[first] = leadingFence.ReplaceAllString(kept[first], "")
		kept[last] = trailingFence.ReplaceAllString(kept[last], "")
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ensureHeader prepends the schema header unless the first non-blank line already
// equals it exactly.
func ensureHeader(text string, schema models.Schema) (string, bool) {
	header := schema.Header()
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.TrimRight(line, " \t\r") == header {
			return text, false
		}
		break
	}
	if text == "" {
		return header, true
	}
	return header + "\n" + text, true
}

// RepairRows aligns every non-blank line to width fields. A line that already reads
// as width CSV fields is kept verbatim. A line that reads as CSV with the wrong
// count is aligned and re-encoded, so quoted values keep their commas. Any other
// line is split on the delimiter and re-joined verbatim, with the folded last
// column quoted. Extra fields are folded into the last column joined by the
// delimiter; missing fields are padded with "".
func RepairRows(text string, width int) string {
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if fields, ok := readLine(line); ok {
			if len(fields) == width {
				cleaned = append(cleaned, line)
				continue
			}
			if encoded, err := encodeLine(AlignFields(fields, width)); err == nil {
				cleaned = append(cleaned, encoded)
				continue
			}
		}

		fields := AlignFields(strings.Split(line, delimiter), width)
		fields[width-1] = quoteField(fields[width-1])
		cleaned = append(cleaned, strings.Join(fields, delimiter))
	}
	return strings.Join(cleaned, "\n")
}

// readLine parses a single line as one CSV record of any width.
func readLine(line string) ([]string, bool) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, false
	}
	return fields, true
}

// encodeLine renders fields as one CSV line without the trailing newline.
func encodeLine(fields []string) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(fields); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\r\n"), nil
}

// quoteField wraps a field in double quotes when it holds a delimiter or quote.
// Fields that are already a well-formed quoted value are left alone.
func quoteField(field string) string {
	if len(field) >= 2 && strings.HasPrefix(field, `"`) && strings.HasSuffix(field, `"`) &&
		!strings.Contains(strings.ReplaceAll(field[1:len(field)-1], `""`, ""), `"`) {
		return field
	}
	if !strings.ContainsAny(field, delimiter+`"`) {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// AlignFields returns exactly width fields.
func AlignFields(fields []string, width int) []string {
	switch {
	case len(fields) > width:
		out := make([]string, width)
		copy(out, fields[:width-1])
		out[width-1] = strings.Join(fields[width-1:], delimiter)
		return out
	case len(fields) < width:
		out := make([]string, width)
		copy(out, fields)
		return out
	default:
		return fields
	}
}

// parseStrict reads RFC 4180 CSV requiring exactly width fields on every record.
// lazy tolerates stray quotes inside unquoted fields, e.g. `12" cheque`.
func parseStrict(text string, width int, lazy bool) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = width
	r.LazyQuotes = lazy

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.New("no records")
	}
	return records, nil
}

// buildTable checks the parsed header against the schema and returns the data rows.
func buildTable(records [][]string, schema models.Schema) (*models.Table, error) {
	header := records[0]
	for i, col := range schema.Columns {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("%w: %s: column %d is %q, expected %q", ErrSchemaRecovery, schema.Name, i+1, header[i], col)
		}
	}

	table := models.NewTable(schema.Columns)
	for _, rec := range records[1:] {
		table.AppendRow(rec)
	}
	return table, nil
}

// normalizeEnums uppercases enumerated cells and fills empty ones with the default.
// Values still outside the allowed set are kept as-is and reported.
func normalizeEnums(table *models.Table, schema models.Schema) []Anomaly {
	var anomalies []Anomaly
	for column, enum := range schema.Enums {
		idx := table.ColumnIndex(column)
		if idx < 0 {
			continue
		}
		for i, row := range table.Rows {
			value := strings.ToUpper(strings.TrimSpace(row[idx]))
			if value == "" {
				value = enum.Default
			}
			row[idx] = value
			if !schema.IsAllowed(column, value) {
				anomalies = append(anomalies, Anomaly{Row: i, Column: column, Value: value})
			}
		}
	}
	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].Row != anomalies[j].Row {
			return anomalies[i].Row < anomalies[j].Row
		}
		return anomalies[i].Column < anomalies[j].Column
	})
	return anomalies
}
