package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rsparser/internal/record"
)

// A fetched referent with its own nested collection spans several rows.
// The second sighting must fast-forward past the driver's repeated block
// instead of re-walking the referent's columns.
func TestSkip_RepeatedReferentRowsAreSkipped(t *testing.T) {
	p := newTestParser(t, "id", "locationRef:", "a$id", "a$name", "a$tags", "aa$")
	feedAll(t, p, [][]any{
		{int64(1), int64(25), int64(25), "NYC", int64(1), "big"},
		{int64(1), int64(25), int64(25), "NYC", int64(1), "loud"},
		{int64(2), int64(25), int64(25), "NYC", int64(1), "big"},
		// The skipped row is never walked: poison cells prove it.
		{nil, nil, nil, nil, nil, nil},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "locationRef": record.Ref("Location#25"),
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "locationRef": record.Ref("Location#25"),
	}, recs[1])

	require.Len(t, p.ReferredRecords(), 1)
	assertRecord(t, record.Object{
		"id": record.Number(25), "name": record.String("NYC"),
		"tags": &record.List{Elems: []record.Value{record.String("big"), record.String("loud")}},
	}, p.ReferredRecords()["Location#25"])

	assert.Equal(t, 4, p.RowsProcessed())
}

// A referent without nested collections occupies a single row, so later
// sightings skip only its columns, never whole rows.
func TestSkip_SingleRowReferentSkipsNoRows(t *testing.T) {
	p := newTestParser(t, "id", "locationRef:", "a$id", "a$name")
	feedAll(t, p, [][]any{
		{int64(1), int64(25), int64(25), "NYC"},
		{int64(2), int64(25), int64(25), "NYC"},
		{int64(3), int64(26), int64(26), "ALB"},
	})

	require.Len(t, p.Records(), 3)
	require.Len(t, p.ReferredRecords(), 2)
	assert.Equal(t, []string{"Location#25", "Location#26"}, p.ReferredRefs())
}

// The same referent sighted through the same column in consecutive records
// must not duplicate elements of its nested collection.
func TestSkip_NoDuplicateElementsOnResight(t *testing.T) {
	p := newTestParser(t, "id", "locationRef:", "a$id", "a$name", "a$tags", "aa$")
	feedAll(t, p, [][]any{
		{int64(1), int64(25), int64(25), "NYC", int64(1), "big"},
		{int64(2), int64(25), int64(25), "NYC", int64(1), "big"},
	})

	loc := p.ReferredRecords()["Location#25"]
	require.NotNil(t, loc)
	tags, ok := loc["tags"].(*record.List)
	require.True(t, ok)
	assert.Len(t, tags.Elems, 1)
}
