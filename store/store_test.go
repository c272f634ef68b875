package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pepegiallo/sqlite-odai/object"
	"github.com/pepegiallo/sqlite-odai/querylanguage"
	"github.com/pepegiallo/sqlite-odai/store"
)

// asString renders a storage.Row value as a string regardless of whether the
// driver surfaced a TEXT column as a Go string or a []byte.
func asString(v any) string { return fmt.Sprintf("%s", v) }

// open returns a Store backed by a real, ephemeral modernc.org/sqlite
// database with the bootstrap schema already applied.
func open(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const ddlSource = `
#text{TEXT}

#int{INTEGER}

+attributes {
	name: text,
	age: int,
}

Person {
	name,
	age,
	~reports_to -> Person(1),
}
`

func TestStoreOpenRunDDLAndObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	require.NoError(t, s.RunDDL(ctx, ddlSource))
	require.NoError(t, s.Commit())

	person, err := s.GetClass(ctx, "Person")
	require.NoError(t, err)

	obj, err := s.CreateObject(ctx, *person, map[string]any{"name": "ada", "age": int64(30)})
	require.NoError(t, err)
	require.NoError(t, s.Commit())
	require.True(t, obj.IsActive())

	fetched, err := s.GetObject(ctx, obj.ID)
	require.NoError(t, err)
	require.Equal(t, obj.ID, fetched.ID)

	name, err := s.GetValue(ctx, fetched, "name")
	require.NoError(t, err)
	require.Equal(t, "ada", name)

	require.NoError(t, s.Modify(ctx, fetched, map[string]any{"age": int64(31)}))
	require.NoError(t, s.Commit())

	age, err := s.GetValue(ctx, fetched, "age")
	require.NoError(t, err)
	require.EqualValues(t, 31, age)

	require.NoError(t, s.Deactivate(ctx, fetched))
	require.NoError(t, s.Commit())
	require.False(t, fetched.IsActive())
}

func TestStoreModifyUnknownAttributeFails(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	require.NoError(t, s.RunDDL(ctx, ddlSource))
	require.NoError(t, s.Commit())

	person, err := s.GetClass(ctx, "Person")
	require.NoError(t, err)

	obj, err := s.Touch(ctx, *person)
	require.NoError(t, err)

	err = s.Modify(ctx, obj, map[string]any{"nickname": "ada"})
	require.Error(t, err)
}

func TestStoreBindAndHop(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	require.NoError(t, s.RunDDL(ctx, ddlSource))
	require.NoError(t, s.Commit())

	person, err := s.GetClass(ctx, "Person")
	require.NoError(t, err)
	ref, err := s.GetReference(ctx, "reports_to")
	require.NoError(t, err)

	manager, err := s.CreateObject(ctx, *person, map[string]any{"name": "grace", "age": int64(45)})
	require.NoError(t, err)
	report, err := s.CreateObject(ctx, *person, map[string]any{"name": "ada", "age": int64(30)})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	require.NoError(t, s.Bind(ctx, *ref, report, []*object.Object{manager}, false))
	require.NoError(t, s.Commit())

	targets, err := s.Hop(ctx, *ref, report, nil, true)
	require.NoError(t, err)
	require.Equal(t, 1, targets.Len())
	require.Equal(t, manager.ID, targets.At(0).ID)

	first, ok, err := s.HopFirst(ctx, *ref, report, nil, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, manager.ID, first.ID)
}

func TestStoreFilterByTypedPredicate(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	require.NoError(t, s.RunDDL(ctx, ddlSource))
	require.NoError(t, s.Commit())

	person, err := s.GetClass(ctx, "Person")
	require.NoError(t, err)

	_, err = s.CreateObject(ctx, *person, map[string]any{"name": "ada", "age": int64(30)})
	require.NoError(t, err)
	_, err = s.CreateObject(ctx, *person, map[string]any{"name": "grace", "age": int64(45)})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	all, err := s.GetInstances(ctx, *person, false, true)
	require.NoError(t, err)
	require.Equal(t, 2, all.Len())

	olderThan40 := querylanguage.IntGT(40).Field("age")
	filtered, err := s.Filter(ctx, all, olderThan40)
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Len())

	name, err := s.GetValue(ctx, filtered.At(0), "name")
	require.NoError(t, err)
	require.Equal(t, "grace", name)
}

func TestStoreInfoAndLog(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	require.NoError(t, s.Log(ctx, "initial bootstrap"))
	require.NoError(t, s.Commit())

	rows, err := s.Info(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "initial bootstrap", asString(rows[0]["comment"]))
	require.Equal(t, store.Version, asString(rows[0]["version"]))
}
