package rentroll

// mapping.go maps human-authored column headers onto the canonical field set.
// The heuristic is advisory: AutoMap seeds a default the user corrects in the
// UI, and SuggestMappings exposes every matching header per field so ties can
// be resolved explicitly instead of silently.

import (
	"fmt"
	"strings"
)

// Mapping assigns each canonical field the source header it reads from.
// An absent or empty entry means the field is unmapped (skipped).
type Mapping map[Field]string

// fieldPatterns holds the case-insensitive substrings that suggest a header
// feeds a given canonical field.
var fieldPatterns = map[Field][]string{
	FieldName:            {"name"},
	FieldEmail:           {"email", "e-mail"},
	FieldPropertyAddress: {"address", "property"},
	FieldUnitNumber:      {"unit", "apt"},
	FieldRentAmount:      {"rent", "amount", "rate"},
	FieldDueDate:         {"due", "date"},
}

// headerMatches reports whether a header's text suggests it feeds field.
func headerMatches(field Field, header string) bool {
	h := strings.ToLower(header)

	if field == FieldName {
		// "Unit Name" is a unit column, not a tenant name.
		return strings.Contains(h, "name") && !strings.Contains(h, "unit")
	}

	for _, pat := range fieldPatterns[field] {
		if strings.Contains(h, pat) {
			return true
		}
	}
	return false
}

// AutoMap seeds a Mapping from the header list. Headers are scanned in file
// order and each field is checked independently per header, so when several
// headers match the same field the last one in file order wins. The user is
// expected to correct mismappings before advancing.
func AutoMap(headers []string) Mapping {
	m := make(Mapping, len(Fields))
	for _, header := range headers {
		if header == "" {
			continue
		}
		for _, field := range Fields {
			if headerMatches(field, header) {
				m[field] = header
			}
		}
	}
	return m
}

// SuggestMappings returns every matching header per field, in file order;
// AutoMap keeps only the last of these. Callers surface the full list so the
// user resolves ambiguity instead of relying on scan order.
func SuggestMappings(headers []string) map[Field][]string {
	suggestions := make(map[Field][]string, len(Fields))
	for _, field := range Fields {
		for _, header := range headers {
			if header != "" && headerMatches(field, header) {
				suggestions[field] = append(suggestions[field], header)
			}
		}
	}
	return suggestions
}

// Complete reports whether every required field is mapped to a concrete
// header. This is the advancement gate between the mapping and preview
// stages.
func (m Mapping) Complete() bool {
	for _, field := range RequiredFields {
		if m[field] == "" {
			return false
		}
	}
	return true
}

// MissingFields returns the required fields that have no mapped header.
func (m Mapping) MissingFields() []Field {
	var missing []Field
	for _, field := range RequiredFields {
		if m[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// Validate checks that every mapped header actually exists in the table.
// A stale mapping (user edited the file and re-uploaded) must not silently
// read empty cells.
func (m Mapping) Validate(headers []string) error {
	known := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		known[h] = struct{}{}
	}

	for field, header := range m {
		if header == "" {
			continue
		}
		if _, ok := known[header]; !ok {
			return fmt.Errorf("field %s mapped to unknown column %q", field, header)
		}
	}
	return nil
}

// cell returns the raw cell value the mapping assigns to field, cleaned of
// export artifacts. Unmapped fields yield empty.
func (m Mapping) cell(row RawRow, field Field) string {
	header := m[field]
	if header == "" {
		return ""
	}
	return CleanCell(row[header])
}
