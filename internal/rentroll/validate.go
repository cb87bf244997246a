package rentroll

// validate.go converts raw rows into candidate records. Validation is a pure
// function of (rows, mapping, now): it never touches the datastore, and it is
// re-run in full whenever the user returns to the mapping stage and
// re-advances. All applicable errors are collected per row, not just the
// first.

import "time"

// Validation error messages shown inline in the preview.
const (
	msgInvalidRent       = "Invalid rent amount"
	msgNameRequired      = "Name is required"
	msgEmailRequired     = "Email is required"
	msgInvalidEmail      = "Invalid email format"
	msgAddressRequired   = "Property address is required"
	msgValidRentRequired = "Valid rent amount is required"
)

// ValidateRows derives one CandidateRecord per raw row, same length and
// order. The due-date default (first of the month after now) is computed once
// per pass, so every defaulted row in a run gets the identical date.
func ValidateRows(table *Table, mapping Mapping, now time.Time) []CandidateRecord {
	defaultDueDate := FirstOfNextMonth(now)

	records := make([]CandidateRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		records = append(records, validateRow(i, row, mapping, defaultDueDate))
	}
	return records
}

func validateRow(index int, row RawRow, mapping Mapping, defaultDueDate time.Time) CandidateRecord {
	rec := CandidateRecord{
		Row:             index,
		Name:            mapping.cell(row, FieldName),
		Email:           mapping.cell(row, FieldEmail),
		PropertyAddress: mapping.cell(row, FieldPropertyAddress),
		UnitNumber:      mapping.cell(row, FieldUnitNumber),
	}

	rawRent := mapping.cell(row, FieldRentAmount)
	rent, ok := ParseMoney(rawRent)
	rec.RentAmount = rent
	if rawRent != "" && (!ok || !rent.IsPositive()) {
		rec.Errors = append(rec.Errors, msgInvalidRent)
	}

	// A parsed source date always wins; the default applies only when the
	// cell is absent, empty, or unparseable.
	if due, ok := ParseDate(mapping.cell(row, FieldDueDate)); ok {
		rec.DueDate = due
	} else {
		rec.DueDate = defaultDueDate
	}

	if rec.Name == "" {
		rec.Errors = append(rec.Errors, msgNameRequired)
	}
	if rec.Email == "" {
		rec.Errors = append(rec.Errors, msgEmailRequired)
	} else if !ValidEmail(rec.Email) {
		rec.Errors = append(rec.Errors, msgInvalidEmail)
	}
	if rec.PropertyAddress == "" {
		rec.Errors = append(rec.Errors, msgAddressRequired)
	}
	if !ok || !rent.IsPositive() {
		rec.Errors = append(rec.Errors, msgValidRentRequired)
	}

	return rec
}

// ValidRecords returns the subset of records that passed validation, in
// order. Only these are ever submitted to the executor.
func ValidRecords(records []CandidateRecord) []CandidateRecord {
	valid := make([]CandidateRecord, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	return valid
}
