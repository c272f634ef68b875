package structure_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pepegiallo/sqlite-odai"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/structure"
	"github.com/pepegiallo/sqlite-odai/transform"
)

// newManager wires a Manager to an adapter over sqlmock. Since the adapter
// opens one transaction lazily on the first mutating Execute and keeps it
// open until Commit/Rollback, every test below issues exactly one
// mock.ExpectBegin() before its first Execute-triggering call and never an
// intervening Commit, mirroring the "caller commits explicitly" contract.
func newManager(t *testing.T) (*structure.Manager, sqlmock.Sqlmock, *storage.Adapter) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	adapter := storage.OpenDB(db, nil)
	host := transform.NewHost(transform.Lookups{}, nil)
	return structure.New(adapter, host), mock, adapter
}

func TestCreateDatatypeRequiresGeneratorXorParent(t *testing.T) {
	mgr, _, _ := newManager(t)
	_, err := mgr.CreateDatatype(context.Background(), "money", nil, nil, "", "")
	require.Error(t, err)

	gen := "INTEGER"
	parent := "int"
	_, err = mgr.CreateDatatype(context.Background(), "money", &gen, &parent, "", "")
	require.Error(t, err)
}

func TestCreateDatatypeRootGenerator(t *testing.T) {
	mgr, mock, _ := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO structure_datatype").
		WithArgs("int", "INTEGER", nil, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	gen := "INTEGER"
	dt, err := mgr.CreateDatatype(context.Background(), "int", &gen, nil, "", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), dt.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComposeReadAppliesChainOuterToInner(t *testing.T) {
	mgr, mock, _ := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO structure_datatype").
		WithArgs("int", "INTEGER", nil, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	gen := "INTEGER"
	_, err := mgr.CreateDatatype(context.Background(), "int", &gen, nil, "", "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO structure_datatype").
		WithArgs("money", "", int64(1), "int(value / 100)", "value * 100").
		WillReturnResult(sqlmock.NewResult(2, 1))

	parent := "int"
	money, err := mgr.CreateDatatype(context.Background(), "money", nil, &parent, "int(value / 100)", "value * 100")
	require.NoError(t, err)

	readFn, err := mgr.ComposeRead(context.Background(), *money)
	require.NoError(t, err)
	out, err := readFn(12300)
	require.NoError(t, err)
	require.Equal(t, 123, out)

	writeFn, err := mgr.ComposeWrite(context.Background(), *money)
	require.NoError(t, err)
	out, err = writeFn(123)
	require.NoError(t, err)
	require.Equal(t, 12300, out)

	generator, err := mgr.EffectiveGenerator(context.Background(), *money)
	require.NoError(t, err)
	require.Equal(t, "INTEGER", generator)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateClassCreatesTableAndRecord(t *testing.T) {
	mgr, mock, _ := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE data_Person").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").
		WithArgs("Person", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	class, err := mgr.CreateClass(context.Background(), "Person", nil, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), class.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateClassDuplicateNameFails(t *testing.T) {
	mgr, mock, _ := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE data_Person").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := mgr.CreateClass(context.Background(), "Person", nil, false)
	require.NoError(t, err)

	_, err = mgr.CreateClass(context.Background(), "Person", nil, false)
	require.True(t, odai.IsDuplicateName(err))
}

func TestAssignmentForInheritsFromAncestor(t *testing.T) {
	mgr, mock, _ := newManager(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO structure_datatype").
		WithArgs("text", "TEXT", nil, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	gen := "TEXT"
	text, err := mgr.CreateDatatype(context.Background(), "text", &gen, nil, "", "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE data_Person").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").
		WithArgs("Person", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	person, err := mgr.CreateClass(context.Background(), "Person", nil, false)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE data_Employee").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").
		WithArgs("Employee", int64(1)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	employee, err := mgr.CreateClass(context.Background(), "Employee", ptr("Person"), false)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO structure_attribute").
		WithArgs("name", int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	nameAttr, err := mgr.CreateAttribute(context.Background(), "name", *text)
	require.NoError(t, err)

	mock.ExpectExec("ALTER TABLE data_Person ADD COLUMN name TEXT").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_attribute_assignment").
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = mgr.Assign(context.Background(), *person, *nameAttr, false, "", "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT class_id, attribute_id, indexed, read_transformer_source, write_transformer_source FROM structure_attribute_assignment").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "attribute_id", "indexed", "read_transformer_source", "write_transformer_source"}))
	assignment, attr, err := mgr.AssignmentFor(context.Background(), *employee, "name")
	require.NoError(t, err)
	require.Equal(t, int64(1), assignment.ClassID)
	require.Equal(t, "name", attr.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentForUnknownAttributeFails(t *testing.T) {
	mgr, mock, _ := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE data_Person").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").WillReturnResult(sqlmock.NewResult(1, 1))
	person, err := mgr.CreateClass(context.Background(), "Person", nil, false)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, name, datatype_id FROM structure_attribute WHERE name = ?").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "datatype_id"}))

	_, _, err = mgr.AssignmentFor(context.Background(), *person, "ghost")
	require.True(t, odai.IsUnknownAttribute(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReferenceCreatesTable(t *testing.T) {
	mgr, mock, _ := newManager(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE data_Person").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").WillReturnResult(sqlmock.NewResult(1, 1))
	person, err := mgr.CreateClass(context.Background(), "Person", nil, false)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE reference_knows").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_reference").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ref, err := mgr.CreateReference(context.Background(), "knows", *person, *person, nil)
	require.NoError(t, err)
	require.Equal(t, "knows", ref.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
