package naming_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pepegiallo/sqlite-odai/naming"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, naming.Validate("Person"))
	assert.NoError(t, naming.Validate("lives_at"))
	assert.NoError(t, naming.Validate("a1"))

	assert.Error(t, naming.Validate("1Person"))
	assert.Error(t, naming.Validate("has space"))
	assert.Error(t, naming.Validate(""))
	assert.Error(t, naming.Validate("has-dash"))
}

func TestPhysicalNames(t *testing.T) {
	assert.Equal(t, "data_Person", naming.DataTable("Person"))
	assert.Equal(t, "reference_lives_at", naming.ReferenceTable("lives_at"))
	assert.Equal(t, "idx_Person_name", naming.Index("Person", "name"))
	assert.Equal(t, "data_meta", naming.MetaTable)
}
