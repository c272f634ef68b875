// Package naming maps logical structure names (class, attribute, reference)
// to the deterministic physical identifiers used on the storage engine:
// data table data_<class>, reference table reference_<ref>, and secondary
// index idx_<class>_<attr>. Grounded on the original's
// utils.get_data_table_name/get_reference_table_name/get_index_name and on
// an identifier-validation regexp in the style of dialect/sql/driver.go.
package naming

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/pepegiallo/sqlite-odai"
)

// identifierRe matches a valid logical identifier: letters, digits,
// underscore, starting with a letter.
var identifierRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate normalises name to NFC and checks it against the identifier
// rule, returning an *odai.InvalidNameError when it fails.
func Validate(name string) error {
	normalised := norm.NFC.String(name)
	if !identifierRe.MatchString(normalised) {
		return odai.NewInvalidNameError(name)
	}
	return nil
}

// DataTable returns the physical table name backing a class's own rows.
func DataTable(class string) string {
	return "data_" + class
}

// ReferenceTable returns the physical table name backing a reference's edges.
func ReferenceTable(reference string) string {
	return "reference_" + reference
}

// Index returns the physical index name for an indexed attribute assignment.
func Index(class, attribute string) string {
	return "idx_" + class + "_" + attribute
}

// MetaTable is the physical name of the object-identity/lifecycle table.
const MetaTable = "data_meta"
