package object_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pepegiallo/sqlite-odai/object"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/structure"
	"github.com/pepegiallo/sqlite-odai/transform"
)

// setup builds a Manager with a single datatype ("int"), a single root
// class ("person") and one assigned attribute ("age"), so later object
// operations can be exercised without paying for schema resolution queries
// (CreateDatatype/CreateClass/CreateAttribute/Assign cache everything they
// create on the in-memory registries, mirroring structure_test.go).
func setup(t *testing.T) (*object.Engine, *structure.Manager, sqlmock.Sqlmock, *storage.Adapter) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	adapter := storage.OpenDB(db, nil)
	host := transform.NewHost(transform.Lookups{}, nil)
	schema := structure.New(adapter, host)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO structure_datatype").
		WithArgs("int", "INTEGER", nil, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("CREATE TABLE data_person").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_class").
		WithArgs("person", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO structure_attribute").
		WithArgs("age", int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("ALTER TABLE data_person ADD COLUMN age INTEGER").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO structure_attribute_assignment").
		WithArgs(int64(1), int64(1), false, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	gen := "INTEGER"
	intType, err := schema.CreateDatatype(context.Background(), "int", &gen, nil, "", "")
	require.NoError(t, err)
	person, err := schema.CreateClass(context.Background(), "person", nil, false)
	require.NoError(t, err)
	age, err := schema.CreateAttribute(context.Background(), "age", *intType)
	require.NoError(t, err)
	_, err = schema.Assign(context.Background(), *person, *age, false, "", "")
	require.NoError(t, err)

	engine := object.New(adapter, schema, host, nil)
	return engine, schema, mock, adapter
}

var personClass = structure.Class{ID: 1, Name: "person"}

func TestTouchCreatesObjectWithNilAttributes(t *testing.T) {
	engine, _, mock, _ := setup(t)

	mock.ExpectExec("INSERT INTO data_meta").
		WithArgs(personClass.ID).
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectQuery("SELECT status, created FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "created"}).
			AddRow(int64(object.StatusInCreation), "2026-01-01 00:00:00"))

	obj, err := engine.Touch(context.Background(), personClass)
	require.NoError(t, err)
	require.Equal(t, int64(100), obj.ID)
	require.Equal(t, object.StatusInCreation, obj.Status)
	require.Equal(t, int64(0), obj.CurrentVersion)
	raw, ok := obj.RawValue("age")
	require.True(t, ok)
	require.Nil(t, raw)
}

func TestCreateObjectModifyAndGetValueRoundTrip(t *testing.T) {
	engine, _, mock, adapter := setup(t)

	mock.ExpectExec("INSERT INTO data_meta").
		WithArgs(personClass.ID).
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectQuery("SELECT status, created FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "created"}).
			AddRow(int64(object.StatusInCreation), "2026-01-01 00:00:00"))
	mock.ExpectExec("INSERT INTO data_person \\(id, version, age\\) VALUES").
		WithArgs(int64(100), int64(1), 30).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE data_meta SET current_version = \\?").
		WithArgs(int64(1), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE data_meta SET status = \\?").
		WithArgs(int64(object.StatusActive), int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	obj, err := engine.CreateObject(context.Background(), personClass, map[string]any{"age": 30})
	require.NoError(t, err)
	require.Equal(t, object.StatusActive, obj.Status)
	require.Equal(t, int64(1), obj.CurrentVersion)

	value, err := engine.GetValue(context.Background(), obj, "age")
	require.NoError(t, err)
	require.Equal(t, 30, value)
	mock.ExpectCommit()
	require.NoError(t, adapter.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModifyRejectsUnknownAttributeBeforeAdvancingVersion(t *testing.T) {
	engine, _, mock, _ := setup(t)

	mock.ExpectExec("INSERT INTO data_meta").
		WithArgs(personClass.ID).
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectQuery("SELECT status, created FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "created"}).
			AddRow(int64(object.StatusInCreation), "2026-01-01 00:00:00"))

	obj, err := engine.Touch(context.Background(), personClass)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE data_person SET version = \\?").
		WithArgs(int64(1), int64(100), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = engine.Modify(context.Background(), obj, map[string]any{"nickname": "joe"})
	require.Error(t, err)
	require.Equal(t, int64(0), obj.CurrentVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetObjectMaterialisesFromClassView(t *testing.T) {
	engine, _, mock, _ := setup(t)

	mock.ExpectQuery("SELECT class_id, status, current_version, created FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "status", "current_version", "created"}).
			AddRow(personClass.ID, int64(object.StatusActive), int64(1), "2026-01-01 00:00:00"))
	mock.ExpectQuery("SELECT data_meta.id AS id, data_person.age AS age FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "age"}).AddRow(int64(100), 30))

	obj, err := engine.GetObject(context.Background(), 100)
	require.NoError(t, err)
	require.Equal(t, int64(1), obj.CurrentVersion)
	raw, ok := obj.RawValue("age")
	require.True(t, ok)
	require.Equal(t, 30, raw)
}

func TestGetInstancesFiltersByClassAndActiveStatus(t *testing.T) {
	engine, _, mock, _ := setup(t)

	mock.ExpectQuery("SELECT id FROM data_meta WHERE class_id IN \\(\\?\\) AND status = 1").
		WithArgs(personClass.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectQuery("SELECT class_id, status, current_version, created FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "status", "current_version", "created"}).
			AddRow(personClass.ID, int64(object.StatusActive), int64(1), "2026-01-01 00:00:00"))
	mock.ExpectQuery("SELECT data_meta.id AS id, data_person.age AS age FROM data_meta").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "age"}).AddRow(int64(100), 30))

	list, err := engine.GetInstances(context.Background(), personClass, false, true)
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	require.Equal(t, int64(100), list.At(0).ID)
}

func TestObjectDumpRendersClassStatusAndAttributes(t *testing.T) {
	engine, _, _, _ := setup(t)

	obj := &object.Object{
		ID:            100,
		Class:         personClass,
		Status:        object.StatusActive,
		RawAttributes: map[string]any{"age": 30},
	}
	values, err := engine.Values(context.Background(), obj)
	require.NoError(t, err)

	dump := obj.Dump(values)
	require.Equal(t, "person 100 (Active):\n  age = 30", dump)
}
