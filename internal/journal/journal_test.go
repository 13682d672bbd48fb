package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rosie/internal/canonical"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j1, err := Open(path)
	require.NoError(t, err)
	_, err = j1.Record(ctx, Call{EngineID: "engine-1", Op: "initialize", Status: true, Items: 3})
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	entries, err := j2.Entries(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "initialize", entries[0].Op)

	v, err := j2.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)
}

func TestOpen_Memory(t *testing.T) {
	j, err := Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Record(context.Background(), Call{EngineID: "e", Op: "match"})
	require.NoError(t, err)
	entries, err := j.Entries(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_AssignsSeqAndDigest(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	input := []byte("1239999999")
	e1, err := j.Record(ctx, Call{EngineID: "engine-1", Op: "match", Input: input, Status: true, Items: 4, Bytes: 60})
	require.NoError(t, err)
	e2, err := j.Record(ctx, Call{EngineID: "engine-1", Op: "match", Input: input, Status: true, Items: 4, Bytes: 60})
	require.NoError(t, err)

	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, int64(2), e2.Seq)
	assert.Equal(t, canonical.Digest(canonical.DomainInput, input), e1.InputDigest)
	assert.Equal(t, len(input), e1.InputLen)
	assert.Len(t, e1.ID, 64)
	assert.NotEqual(t, e1.ID, e2.ID, "seq is part of the identity")
}

func TestRecord_IDIsDeterministic(t *testing.T) {
	ctx := context.Background()
	call := Call{EngineID: "engine-1", Op: "configure", Input: []byte(`{"encode":"json"}`), Status: true, Items: 1, Bytes: 4}

	a, err := openTestJournal(t).Record(ctx, call)
	require.NoError(t, err)
	b, err := openTestJournal(t).Record(ctx, call)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestEntries_Filter(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for _, c := range []Call{
		{EngineID: "engine-1", Op: "initialize", Status: true},
		{EngineID: "engine-1", Op: "configure", Status: false, Detail: "invalid configuration"},
		{EngineID: "engine-2", Op: "initialize", Status: true},
		{EngineID: "engine-1", Op: "match", Status: true},
	} {
		_, err := j.Record(ctx, c)
		require.NoError(t, err)
	}

	all, err := j.Entries(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, e := range all {
		assert.Equal(t, int64(i+1), e.Seq)
	}

	e1, err := j.Entries(ctx, Filter{EngineID: "engine-1"})
	require.NoError(t, err)
	assert.Len(t, e1, 3)

	inits, err := j.Entries(ctx, Filter{Op: "initialize"})
	require.NoError(t, err)
	assert.Len(t, inits, 2)

	limited, err := j.Entries(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := j.Entries(ctx, Filter{EngineID: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.False(t, all[1].Status)
	assert.Equal(t, "invalid configuration", all[1].Detail)
}

func TestEntry_ByID(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec, err := j.Record(ctx, Call{EngineID: "engine-1", Op: "inspect", Status: true, Items: 2})
	require.NoError(t, err)

	got, err := j.Entry(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = j.Entry(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestVerify(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := j.Record(ctx, Call{EngineID: "engine-1", Op: "match", Status: true})
		require.NoError(t, err)
	}
	bad, err := j.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)

	_, err = j.db.ExecContext(ctx, `UPDATE calls SET items = 99 WHERE seq = 2`)
	require.NoError(t, err)

	bad, err = j.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, bad)
}

func TestClose_Nil(t *testing.T) {
	var j *Journal
	assert.NoError(t, j.Close())
}
