package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rsparser/internal/record"
)

func TestExtractString(t *testing.T) {
	fn := Snapshot()[TypeString]
	assert.Nil(t, fn(nil, 0, 0))
	assert.Equal(t, record.String("abc"), fn("abc", 0, 0))
	assert.Equal(t, record.String("abc"), fn([]byte("abc"), 0, 0))
	assert.Equal(t, record.String("42"), fn(int64(42), 0, 0))
	assert.Equal(t, record.String("9.5"), fn(9.5, 0, 0))
	assert.Equal(t, record.String("true"), fn(true, 0, 0))
}

func TestExtractNumber(t *testing.T) {
	fn := Snapshot()[TypeNumber]
	assert.Nil(t, fn(nil, 0, 0))
	assert.Equal(t, record.Number(42), fn(int64(42), 0, 0))
	assert.Equal(t, record.Number(9.5), fn(9.5, 0, 0))
	assert.Equal(t, record.Number(7), fn("7", 0, 0))
	assert.Equal(t, record.Number(7.25), fn([]byte("7.25"), 0, 0))
	assert.Nil(t, fn("not a number", 0, 0))
}

func TestExtractBoolean(t *testing.T) {
	fn := Snapshot()[TypeBoolean]
	assert.Nil(t, fn(nil, 0, 0))
	assert.Equal(t, record.Bool(true), fn(true, 0, 0))
	assert.Equal(t, record.Bool(false), fn(int64(0), 0, 0))
	assert.Equal(t, record.Bool(true), fn(int64(3), 0, 0))
	assert.Equal(t, record.Bool(false), fn("false", 0, 0))
	assert.Equal(t, record.Bool(false), fn("0", 0, 0))
	assert.Equal(t, record.Bool(true), fn("yes", 0, 0))
}

func TestExtractDatetime(t *testing.T) {
	fn := Snapshot()[TypeDatetime]
	assert.Nil(t, fn(nil, 0, 0))

	loc := time.FixedZone("EST", -5*3600)
	ts := time.Date(2020, 3, 14, 10, 30, 0, 0, loc)
	assert.Equal(t, record.Datetime("2020-03-14T15:30:00Z"), fn(ts, 0, 0))

	assert.Equal(t, record.Datetime("2020-03-14T15:30:00Z"), fn("2020-03-14T15:30:00Z", 0, 0))
}

func TestExtractIsNull(t *testing.T) {
	fn := Snapshot()[IsNull]
	assert.Equal(t, record.Bool(true), fn(nil, 0, 0))
	assert.Equal(t, record.Bool(false), fn(int64(0), 0, 0))
	assert.Equal(t, record.Bool(false), fn("", 0, 0))
}

func TestRegisterSnapshotVisibility(t *testing.T) {
	before := Snapshot()
	_, ok := before["customTestType"]
	require.False(t, ok)

	Register("customTestType", func(raw any, _, _ int) record.Value {
		if raw == nil {
			return nil
		}
		return record.String("custom")
	})

	// The earlier snapshot is unaffected; new snapshots see the extractor.
	_, ok = before["customTestType"]
	assert.False(t, ok)
	after := Snapshot()
	require.Contains(t, after, "customTestType")
	assert.Equal(t, record.String("custom"), after["customTestType"]("x", 0, 0))
}
