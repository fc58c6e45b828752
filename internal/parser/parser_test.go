package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// testLibrary builds the record-types library shared by the parser tests.
func testLibrary(t *testing.T) *schema.Library {
	t.Helper()

	address := map[string]*schema.PropertyDef{
		"street": {ValueType: "string"},
		"city":   {ValueType: "string"},
		"state":  {ValueType: "string"},
		"zip":    {ValueType: "string"},
	}
	addressWithID := map[string]*schema.PropertyDef{
		"id":     {ValueType: "number", ID: true},
		"street": {ValueType: "string"},
		"city":   {ValueType: "string"},
		"state":  {ValueType: "string"},
		"zip":    {ValueType: "string"},
	}

	def := &schema.LibraryDefinition{RecordTypes: map[string]*schema.RecordTypeDef{
		"Person": {Properties: map[string]*schema.PropertyDef{
			"id":        {ValueType: "number", ID: true},
			"firstName": {ValueType: "string"},
			"lastName":  {ValueType: "string"},
			"active":    {ValueType: "boolean"},
			"createdAt": {ValueType: "datetime"},
			"address":   {ValueType: "object", Properties: address},
			"addresses": {ValueType: "object", Card: "array", Properties: addressWithID},
			"scores":    {ValueType: "number", Card: "array"},
			"nicknames": {ValueType: "string", Card: "map", KeyValueType: "string"},
			"home": {ValueType: "object", Properties: map[string]*schema.PropertyDef{
				"name": {ValueType: "string"},
				"tags": {ValueType: "string", Card: "array"},
			}},
			"work": {ValueType: "object", Properties: map[string]*schema.PropertyDef{
				"name": {ValueType: "string"},
				"tags": {ValueType: "string", Card: "array"},
			}},
			"paymentInfo": {ValueType: "object", Subtypes: map[string]*schema.RecordTypeDef{
				"CREDIT_CARD": {Properties: map[string]*schema.PropertyDef{
					"last4Digits": {ValueType: "string"},
					"expDate":     {ValueType: "string"},
				}},
				"ACH_TRANSFER": {Properties: map[string]*schema.PropertyDef{
					"accountType": {ValueType: "string"},
					"last4Digits": {ValueType: "string"},
				}},
			}},
			"locationRef":  {ValueType: "ref", RefTargets: []string{"Location"}},
			"locationRefs": {ValueType: "ref", Card: "array", RefTargets: []string{"Location"}},
		}},
		"Location": {Properties: map[string]*schema.PropertyDef{
			"id":   {ValueType: "number", ID: true},
			"name": {ValueType: "string"},
			"tags": {ValueType: "string", Card: "array"},
		}},
	}}

	lib, err := schema.Build(def)
	require.NoError(t, err)
	return lib
}

func newTestParser(t *testing.T, markup ...string) *Parser {
	t.Helper()
	p, err := New(testLibrary(t), "Person")
	require.NoError(t, err)
	require.NoError(t, p.Init(markup))
	return p
}

func feedAll(t *testing.T, p *Parser, rows [][]any) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, p.FeedRow(row))
	}
}

// canon renders a value as canonical JSON for readable comparisons.
func canon(t *testing.T, v record.Value) string {
	t.Helper()
	b, err := record.MarshalCanonical(v)
	require.NoError(t, err)
	return string(b)
}

func assertRecord(t *testing.T, expect record.Object, got record.Object) {
	t.Helper()
	assert.Equal(t, canon(t, expect), canon(t, got))
}

func TestParse_SimpleScalars(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName")
	feedAll(t, p, [][]any{
		{int64(1), "A", "B"},
		{int64(2), "C", nil},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "firstName": record.String("A"), "lastName": record.String("B"),
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"),
	}, recs[1])
	assert.Empty(t, p.ReferredRecords())
}

func TestParse_EmptyStream(t *testing.T) {
	p := newTestParser(t, "id", "firstName")
	assert.Empty(t, p.Records())
	assert.Empty(t, p.ReferredRecords())
}

func TestParse_NestedObject(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName",
		"address", "a$street", "a$city", "a$state", "a$zip")
	feedAll(t, p, [][]any{
		{int64(1), "A", "B", int64(1), "St", "NY", "NY", "10001"},
		{int64(2), "C", "D", nil, nil, nil, nil, nil},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "firstName": record.String("A"), "lastName": record.String("B"),
		"address": record.Object{
			"street": record.String("St"), "city": record.String("NY"),
			"state": record.String("NY"), "zip": record.String("10001"),
		},
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"), "lastName": record.String("D"),
	}, recs[1])
}

func TestParse_ScalarArray(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName", "scores", "a$")
	feedAll(t, p, [][]any{
		{int64(1), "A", "B", int64(1), 9.5},
		{int64(1), "A", "B", int64(1), 8.0},
		{int64(2), "C", "D", nil, nil},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "firstName": record.String("A"), "lastName": record.String("B"),
		"scores": &record.List{Elems: []record.Value{record.Number(9.5), record.Number(8.0)}},
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"), "lastName": record.String("D"),
	}, recs[1])
}

func TestParse_ScalarArrayNullSlot(t *testing.T) {
	p := newTestParser(t, "id", "scores", "a$")
	feedAll(t, p, [][]any{
		{int64(1), int64(1), 9.5},
		{int64(1), int64(1), nil},
	})

	recs := p.Records()
	require.Len(t, recs, 1)
	assertRecord(t, record.Object{
		"id":     record.Number(1),
		"scores": &record.List{Elems: []record.Value{record.Number(9.5), record.Null{}}},
	}, recs[0])
}

func TestParse_ScalarMap(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "nicknames", "a$")
	feedAll(t, p, [][]any{
		{int64(1), "A", "work", "Ace"},
		{int64(1), "A", "home", "Big A"},
		{int64(2), "C", nil, nil},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "firstName": record.String("A"),
		"nicknames": record.Map{"work": record.String("Ace"), "home": record.String("Big A")},
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"),
	}, recs[1])
}

func TestParse_ScalarMapNullValueSkipsKey(t *testing.T) {
	p := newTestParser(t, "id", "nicknames", "a$")
	feedAll(t, p, [][]any{
		{int64(1), "work", "Ace"},
		{int64(1), "home", nil},
	})

	recs := p.Records()
	require.Len(t, recs, 1)
	assertRecord(t, record.Object{
		"id":        record.Number(1),
		"nicknames": record.Map{"work": record.String("Ace")},
	}, recs[0])
}

func TestParse_ScalarMapRepeatedKey(t *testing.T) {
	p := newTestParser(t, "id", "nicknames", "a$")
	require.NoError(t, p.FeedRow([]any{int64(1), "work", "Ace"}))

	err := p.FeedRow([]any{int64(1), "work", "Deuce"})
	require.Error(t, err)
	assert.True(t, IsDataError(err))
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeStuckAnchor, de.Code)
	assert.Equal(t, 1, de.Row)
	assert.Equal(t, 1, de.Column)
}

func TestParse_ObjectArray(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName",
		"addresses", "a$street", "a$city", "a$state", "a$zip")
	feedAll(t, p, [][]any{
		{int64(1), "A", "B", int64(11), "S1", "NYC", "NY", "10001"},
		{int64(1), "A", "B", int64(12), "S2", "ALB", "NY", "12201"},
		{int64(2), "C", "D", nil, nil, nil, nil, nil},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "firstName": record.String("A"), "lastName": record.String("B"),
		"addresses": &record.List{Elems: []record.Value{
			record.Object{
				"id": record.Number(11), "street": record.String("S1"),
				"city": record.String("NYC"), "state": record.String("NY"), "zip": record.String("10001"),
			},
			record.Object{
				"id": record.Number(12), "street": record.String("S2"),
				"city": record.String("ALB"), "state": record.String("NY"), "zip": record.String("12201"),
			},
		}},
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"), "lastName": record.String("D"),
	}, recs[1])
}

func TestParse_PolymorphicObject(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName", "paymentInfo",
		"a$CREDIT_CARD", "aa$last4Digits", "aa$expDate",
		"a$ACH_TRANSFER", "ab$accountType", "ab$last4Digits")
	feedAll(t, p, [][]any{
		{int64(1), "A", "B", int64(1), int64(1), "1234", "2099-12", nil, nil, nil},
		{int64(2), "C", "D", int64(1), nil, nil, nil, int64(1), "CHECKING", "9876"},
	})

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(1), "firstName": record.String("A"), "lastName": record.String("B"),
		"paymentInfo": record.Object{
			"type":        record.String("CREDIT_CARD"),
			"last4Digits": record.String("1234"),
			"expDate":     record.String("2099-12"),
		},
	}, recs[0])
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"), "lastName": record.String("D"),
		"paymentInfo": record.Object{
			"type":        record.String("ACH_TRANSFER"),
			"accountType": record.String("CHECKING"),
			"last4Digits": record.String("9876"),
		},
	}, recs[1])
}

func TestParse_PolymorphicObjectBothSides(t *testing.T) {
	p := newTestParser(t, "id", "paymentInfo",
		"a$CREDIT_CARD", "aa$last4Digits",
		"a$ACH_TRANSFER", "ab$accountType")

	err := p.FeedRow([]any{int64(1), int64(1), int64(1), "1234", int64(1), "CHECKING"})
	require.Error(t, err)
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeMultiplePolyValues, de.Code)
}

func TestParse_SingleRef(t *testing.T) {
	p := newTestParser(t, "id", "locationRef")
	feedAll(t, p, [][]any{{int64(1), int64(25)}})

	recs := p.Records()
	require.Len(t, recs, 1)
	assertRecord(t, record.Object{
		"id": record.Number(1), "locationRef": record.Ref("Location#25"),
	}, recs[0])
	assert.Empty(t, p.ReferredRecords(), "unfetched references must not materialize referred records")
}

func TestParse_RefArray(t *testing.T) {
	p := newTestParser(t, "id", "locationRefs", "a$")
	feedAll(t, p, [][]any{
		{int64(1), int64(1), int64(25)},
		{int64(1), int64(1), int64(26)},
	})

	recs := p.Records()
	require.Len(t, recs, 1)
	assertRecord(t, record.Object{
		"id": record.Number(1),
		"locationRefs": &record.List{Elems: []record.Value{
			record.Ref("Location#25"), record.Ref("Location#26"),
		}},
	}, recs[0])
}

func TestParse_FetchedRefDeduplicates(t *testing.T) {
	p := newTestParser(t, "id", "locationRef:", "a$id", "a$name")
	feedAll(t, p, [][]any{
		{int64(1), int64(25), int64(25), "NYC"},
		{int64(2), int64(25), int64(25), "NYC"},
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
	}, p.ReferredRecords()["Location#25"])
	assert.Equal(t, []string{"Location#25"}, p.ReferredRefs())
}

func TestParse_TopIDNull(t *testing.T) {
	p := newTestParser(t, "id", "firstName")
	err := p.FeedRow([]any{nil, "A"})
	require.Error(t, err)
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeNullID, de.Code)
	assert.Equal(t, 0, de.Row)
	assert.Equal(t, 0, de.Column)
}

func TestParse_RepeatedIDWithoutAnchors(t *testing.T) {
	p := newTestParser(t, "id", "firstName")
	require.NoError(t, p.FeedRow([]any{int64(1), "A"}))

	err := p.FeedRow([]any{int64(1), "A"})
	require.Error(t, err)
	var de *DataError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrCodeNoAnchorChange, de.Code)
}

func TestParse_RequiredNullValue(t *testing.T) {
	lib, err := schema.Build(&schema.LibraryDefinition{RecordTypes: map[string]*schema.RecordTypeDef{
		"Item": {Properties: map[string]*schema.PropertyDef{
			"id":   {ValueType: "number", ID: true},
			"name": {ValueType: "string", Required: true},
		}},
	}})
	require.NoError(t, err)
	p, err := New(lib, "Item")
	require.NoError(t, err)
	require.NoError(t, p.Init([]string{"id", "name"}))

	ferr := p.FeedRow([]any{int64(1), nil})
	require.Error(t, ferr)
	var de *DataError
	require.ErrorAs(t, ferr, &de)
	assert.Equal(t, ErrCodeNullValue, de.Code)
	assert.Equal(t, 1, de.Column)
}

func TestParse_FeedRowMap(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName")
	require.NoError(t, p.FeedRowMap(map[string]any{
		"id": int64(1), "firstName": "A", "lastName": "B",
	}))
	// Absent labels read as null cells.
	require.NoError(t, p.FeedRowMap(map[string]any{
		"id": int64(2), "firstName": "C",
	}))

	recs := p.Records()
	require.Len(t, recs, 2)
	assertRecord(t, record.Object{
		"id": record.Number(2), "firstName": record.String("C"),
	}, recs[1])
}

func TestParse_ResetIdempotence(t *testing.T) {
	rows := [][]any{
		{int64(1), "A", "B", int64(1), 9.5},
		{int64(1), "A", "B", int64(1), 8.0},
		{int64(2), "C", "D", nil, nil},
	}

	p := newTestParser(t, "id", "firstName", "lastName", "scores", "a$")
	feedAll(t, p, rows)
	want := canon(t, &record.List{Elems: objectsToValues(p.Records())})

	p.Reset()
	assert.Empty(t, p.Records())
	assert.Empty(t, p.ReferredRecords())
	assert.Equal(t, 0, p.RowsProcessed())

	feedAll(t, p, rows)
	assert.Equal(t, want, canon(t, &record.List{Elems: objectsToValues(p.Records())}))
}

func objectsToValues(recs []record.Object) []record.Value {
	vals := make([]record.Value, len(recs))
	for i, r := range recs {
		vals[i] = r
	}
	return vals
}

func TestParse_UsageErrors(t *testing.T) {
	lib := testLibrary(t)

	_, err := New(lib, "Nope")
	require.Error(t, err)
	assert.True(t, IsUsageError(err))

	p, err := New(lib, "Person")
	require.NoError(t, err)

	err = p.FeedRow([]any{int64(1)})
	require.Error(t, err)
	assert.True(t, IsUsageError(err), "feeding before init is a usage error")

	require.NoError(t, p.Init([]string{"id", "firstName"}))
	err = p.Init([]string{"id"})
	require.Error(t, err)
	var ue *UsageError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ErrCodeAlreadyInitialized, ue.Code)

	err = p.FeedRow([]any{int64(1)})
	require.Error(t, err)
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, ErrCodeBadArgument, ue.Code)
}

func TestParse_ColumnOrderInvariance(t *testing.T) {
	p1 := newTestParser(t, "id", "firstName", "lastName")
	feedAll(t, p1, [][]any{{int64(1), "A", "B"}})

	p2 := newTestParser(t, "id", "lastName", "firstName")
	feedAll(t, p2, [][]any{{int64(1), "B", "A"}})

	assert.Equal(t, canon(t, p1.Records()[0]), canon(t, p2.Records()[0]))
}
