package markdown

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/thisisharsh7/epicenter-sub010/errors"
	"github.com/thisisharsh7/epicenter-sub010/schema"
)

const frontMatterDelimiter = "---"

// renderFrontMatter renders row as a "YAML-ish" front-matter header (one
// `key: value` line per field other than bodyField, alphabetical; values
// that are not strings, numbers, booleans or nil are written as JSON)
// followed by the bodyField's value as plain markdown text.
func renderFrontMatter(row schema.Row, bodyField string) []byte {
	keys := make([]string, 0, len(row))
	for k := range row {
		if k == bodyField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelimiter)
	buf.WriteByte('\n')
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(formatFrontMatterValue(row[k]))
		buf.WriteByte('\n')
	}
	buf.WriteString(frontMatterDelimiter)
	buf.WriteByte('\n')

	if body, ok := row[bodyField].(string); ok {
		buf.WriteString(body)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func formatFrontMatterValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func parseFrontMatterValue(raw string) any {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil
	case raw == "true":
		return true
	case raw == "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, `"`) {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return raw
}

// parseFrontMatter reverses renderFrontMatter: splits raw into its header
// and body sections and decodes the header's `key: value` lines (JSON
// values included) back into a schema.Row, filing body under bodyField.
func parseFrontMatter(raw []byte, bodyField string) (schema.Row, error) {
	text := string(raw)
	opener := frontMatterDelimiter + "\n"
	if !strings.HasPrefix(text, opener) {
		return nil, errors.New("missing opening front-matter delimiter")
	}
	rest := text[len(opener):]

	closer := "\n" + frontMatterDelimiter + "\n"
	end := strings.Index(rest, closer)
	if end == -1 {
		return nil, errors.New("missing closing front-matter delimiter")
	}

	header := rest[:end]
	body := rest[end+len(closer):]

	row := schema.Row{}
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		row[key] = parseFrontMatterValue(line[idx+1:])
	}
	row[bodyField] = strings.TrimSuffix(body, "\n")
	return row, nil
}
