package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initErr(t *testing.T, markup ...string) *MarkupError {
	t.Helper()
	p, err := New(testLibrary(t), "Person")
	require.NoError(t, err)
	ierr := p.Init(markup)
	require.Error(t, ierr)
	var me *MarkupError
	require.ErrorAs(t, ierr, &me)
	return me
}

func TestCompile_FirstColumnNotID(t *testing.T) {
	me := initErr(t, "firstName", "id")
	assert.Equal(t, ErrCodeFirstColumnNotID, me.Code)
	assert.Equal(t, 0, me.Column)
}

func TestCompile_UnknownProperty(t *testing.T) {
	me := initErr(t, "id", "nope")
	assert.Equal(t, ErrCodeUnknownProperty, me.Code)
	assert.Equal(t, 1, me.Column)
	assert.Equal(t, "nope", me.Label)
}

func TestCompile_FetchedNonRef(t *testing.T) {
	me := initErr(t, "id", "firstName:")
	assert.Equal(t, ErrCodeFetchedNonRef, me.Code)
}

func TestCompile_PrefixNotLonger(t *testing.T) {
	// Nested columns of "address" must carry a prefix longer than the
	// top level's empty one.
	me := initErr(t, "id", "address", "street")
	assert.Equal(t, ErrCodeBadPrefix, me.Code)
}

func TestCompile_UnexpectedPrefix(t *testing.T) {
	// A column whose prefix matches no open level is left over after the
	// recursion.
	me := initErr(t, "id", "firstName", "zz$street")
	assert.Equal(t, ErrCodeBadPrefix, me.Code)
	assert.Equal(t, 2, me.Column)
}

func TestCompile_LevelExhaustion(t *testing.T) {
	// Collections are trailing: no columns at the same level after one.
	me := initErr(t, "id", "scores", "a$", "lastName")
	assert.Equal(t, ErrCodeLevelExhausted, me.Code)
	assert.Equal(t, 3, me.Column)
}

func TestCompile_MultipleCollectionAxes(t *testing.T) {
	// Two sibling subtrees each introducing a collection would need two
	// anchor chains from the same anchor.
	me := initErr(t, "id",
		"home", "h$name", "h$tags", "ha$",
		"work", "w$name", "w$tags", "wa$")
	assert.Equal(t, ErrCodeMultipleAxes, me.Code)
}

func TestCompile_UnknownSubtype(t *testing.T) {
	me := initErr(t, "id", "paymentInfo", "a$WIRE", "aa$last4Digits")
	assert.Equal(t, ErrCodeUnknownSubtype, me.Code)
	assert.Equal(t, 2, me.Column)
}

func TestCompile_ScalarElementColumnMustBeUnnamed(t *testing.T) {
	me := initErr(t, "id", "scores", "a$value")
	assert.Equal(t, ErrCodeBadLabel, me.Code)
}

func TestCompile_BadLabels(t *testing.T) {
	me := initErr(t, "id", "$street")
	assert.Equal(t, ErrCodeBadLabel, me.Code)

	me = initErr(t, "id", "a$b$c")
	assert.Equal(t, ErrCodeBadLabel, me.Code)
}

func TestCompile_EmptyMarkup(t *testing.T) {
	p, err := New(testLibrary(t), "Person")
	require.NoError(t, err)
	ierr := p.Init(nil)
	require.Error(t, ierr)
	assert.True(t, IsUsageError(ierr))
}

func TestCompile_HandlerPerColumn(t *testing.T) {
	p := newTestParser(t, "id", "firstName", "lastName",
		"addresses", "a$street", "a$city", "a$state", "a$zip")
	assert.Len(t, p.handlers, 8)
	for i, h := range p.handlers {
		assert.Equal(t, i, h.colIndex())
	}
}

// Every anchor has at most one linked child: the compiled chain is a path.
func TestCompile_SingleAxisChain(t *testing.T) {
	p := newTestParser(t, "id", "locationRef:", "a$id", "a$name", "a$tags", "aa$")

	seen := 0
	for _, h := range p.handlers {
		if a, ok := h.(anchorHandler); ok {
			seen++
			if next := a.nextAnchor(); next != nil {
				assert.Greater(t, next.colIndex(), a.colIndex())
			}
		}
	}
	assert.Equal(t, 2, seen, "top id and the tags collection are the anchors")
}
