package reference_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/pepegiallo/sqlite-odai/object"
	"github.com/pepegiallo/sqlite-odai/reference"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/structure"
	"github.com/pepegiallo/sqlite-odai/transform"
)

func newEngine(t *testing.T) (*reference.Engine, sqlmock.Sqlmock, *storage.Adapter) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	adapter := storage.OpenDB(db, nil)
	host := transform.NewHost(transform.Lookups{}, nil)
	schema := structure.New(adapter, host)
	objects := object.New(adapter, schema, host, nil)
	return reference.New(adapter, schema, objects), mock, adapter
}

var personClass = structure.Class{ID: 1, Name: "person"}

var tagsReference = structure.Reference{ID: 5, Name: "tags", OriginClassID: 1, TargetClassID: 1}

func TestBindCardinalityExceededRejectsWithoutTouchingStorage(t *testing.T) {
	engine, mock, _ := newEngine(t)
	cap := 1
	ref := tagsReference
	ref.Cardinality = &cap

	origin := &object.Object{ID: 10}
	targets := []*object.Object{{ID: 20}, {ID: 21}}

	err := engine.Bind(context.Background(), ref, origin, targets, false)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBindCarriesForwardAndFiltersAlreadyBoundTargets(t *testing.T) {
	engine, mock, adapter := newEngine(t)
	origin := &object.Object{ID: 10}
	t1 := &object.Object{ID: 20}
	t2 := &object.Object{ID: 21}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO structure_reference_version").
		WithArgs(tagsReference.ID, origin.ID).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT current_version FROM structure_reference_version").
		WithArgs(tagsReference.ID, origin.ID).
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT target_id FROM reference_tags WHERE origin_id = \\? AND version = \\?").
		WithArgs(origin.ID, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"target_id"}).AddRow(t1.ID))
	mock.ExpectExec("INSERT INTO reference_tags \\(origin_id, target_id, version\\) SELECT origin_id, target_id, \\? FROM reference_tags WHERE origin_id = \\? AND version = \\?").
		WithArgs(int64(1), origin.ID, int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep := mock.ExpectPrepare("INSERT INTO reference_tags")
	prep.ExpectExec().WithArgs(origin.ID, t2.ID, int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE structure_reference_version SET current_version = \\?").
		WithArgs(int64(1), tagsReference.ID, origin.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := engine.Bind(context.Background(), tagsReference, origin, []*object.Object{t1, t2}, false)
	require.NoError(t, err)
	require.NoError(t, adapter.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHopFiltersInactiveTargetsByDefault(t *testing.T) {
	engine, mock, _ := newEngine(t)
	origin := &object.Object{ID: 10}

	mock.ExpectQuery("SELECT current_version FROM structure_reference_version").
		WithArgs(tagsReference.ID, origin.ID).
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT target_id FROM reference_tags WHERE origin_id = \\? AND version = \\?").
		WithArgs(origin.ID, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"target_id"}).AddRow(int64(20)).AddRow(int64(21)))

	// target 20: active. Class "person" is resolved from storage once and
	// cached on the Manager, so only this first GetObject pays for it.
	mock.ExpectQuery("SELECT class_id, status, current_version, created FROM data_meta").
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "status", "current_version", "created"}).
			AddRow(personClass.ID, int64(object.StatusActive), int64(0), "2026-01-01 00:00:00"))
	mock.ExpectQuery("SELECT id, name, parent_id FROM structure_class").
		WithArgs(personClass.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}).AddRow(personClass.ID, personClass.Name, nil))
	mock.ExpectQuery("SELECT class_id, attribute_id, indexed, read_transformer_source, write_transformer_source FROM structure_attribute_assignment").
		WithArgs(personClass.ID).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "attribute_id", "indexed", "read_transformer_source", "write_transformer_source"}))
	mock.ExpectQuery("SELECT data_meta.id AS id FROM data_meta").
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(20)))

	// target 21: inactive, filtered out by Hop's activeOnly=true. Class
	// lookup is now a cache hit, so no structure_class query is issued.
	mock.ExpectQuery("SELECT class_id, status, current_version, created FROM data_meta").
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "status", "current_version", "created"}).
			AddRow(personClass.ID, int64(object.StatusInactive), int64(0), "2026-01-01 00:00:00"))
	mock.ExpectQuery("SELECT class_id, attribute_id, indexed, read_transformer_source, write_transformer_source FROM structure_attribute_assignment").
		WithArgs(personClass.ID).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "attribute_id", "indexed", "read_transformer_source", "write_transformer_source"}))
	mock.ExpectQuery("SELECT data_meta.id AS id FROM data_meta").
		WithArgs(int64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(21)))

	list, err := engine.Hop(context.Background(), tagsReference, origin, nil, true)
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	require.Equal(t, int64(20), list.At(0).ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHopReturnsEmptyListWhenNeverBound(t *testing.T) {
	engine, mock, _ := newEngine(t)
	origin := &object.Object{ID: 99}

	mock.ExpectQuery("SELECT current_version FROM structure_reference_version").
		WithArgs(tagsReference.ID, origin.ID).
		WillReturnRows(sqlmock.NewRows([]string{"current_version"}))

	list, err := engine.Hop(context.Background(), tagsReference, origin, nil, false)
	require.NoError(t, err)
	require.Equal(t, 0, list.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}
