package parser

import (
	"github.com/roach88/rsparser/internal/extract"
	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// baseHandler carries the parser back-reference and column index every
// handler variant needs.
type baseHandler struct {
	p   *Parser
	col int
}

func (h *baseHandler) colIndex() int { return h.col }

// anchorBase carries the single next-anchor link of the collection axis.
type anchorBase struct {
	baseHandler
	next anchorHandler
}

func (a *anchorBase) setNextAnchor(n anchorHandler) bool {
	if a.next != nil {
		return false
	}
	a.next = n
	return true
}

func (a *anchorBase) nextAnchor() anchorHandler { return a.next }

// isNullCell applies the isNull extractor to a cell.
func isNullCell(fn extract.Func, raw any, rowNum, colInd int) bool {
	v, ok := fn(raw, rowNum, colInd).(record.Bool)
	return ok && bool(v)
}

// topRecordIDHandler is the anchor at column 0. A new id value starts a new
// top record; a repeated id transfers the walk to the next anchor on the
// collection axis.
type topRecordIDHandler struct {
	anchorBase
	propName string
	idEx     extract.Func
	cell     *objectCell
	lastID   record.Value
}

func (h *topRecordIDHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if id == nil {
		return 0, dataErr(ErrCodeNullID, rowNum, h.col, "got NULL for the top record id")
	}

	if h.lastID != nil && record.Equal(id, h.lastID) {
		if h.next == nil {
			return 0, dataErr(ErrCodeNoAnchorChange, rowNum, h.col,
				"at least one anchor must change in each row")
		}
		return h.next.colIndex(), nil
	}

	h.lastID = id
	h.p.resetChain(h.col)

	rec := h.p.topType.NewRecord()
	rec[h.propName] = id
	h.p.records = append(h.p.records, rec)
	h.cell.obj = rec
	return h.col + 1, nil
}

func (h *topRecordIDHandler) reset() {
	h.lastID = nil
	h.cell.obj = nil
}

func (h *topRecordIDHandler) empty(int) {}

// singleValueHandler writes a scalar property value into the current object.
type singleValueHandler struct {
	baseHandler
	propName string
	ex       extract.Func
	required bool
	parent   *objectCell
}

func (h *singleValueHandler) execute(rowNum int, raw any) (int, error) {
	v := h.ex(raw, rowNum, h.col)
	if v == nil {
		if h.required {
			return 0, dataErr(ErrCodeNullValue, rowNum, h.col,
				"got NULL for non-optional property %q", h.propName)
		}
		return h.col + 1, nil
	}
	h.parent.obj[h.propName] = v
	return h.col + 1, nil
}

func (h *singleValueHandler) reset() {}

// singleObjectHandler consumes the object-indicator column of a
// monomorphic nested object. A null indicator leaves the property absent
// and skips the nested columns.
type singleObjectHandler struct {
	baseHandler
	propName string
	isNull   extract.Func
	shape    *schema.RecordTypeDesc
	parent   *objectCell
	cell     *objectCell
	nextCol  int
}

func (h *singleObjectHandler) execute(rowNum int, raw any) (int, error) {
	if isNullCell(h.isNull, raw, rowNum, h.col) {
		h.p.emptyChildAnchors(h.col, h.nextCol)
		h.cell.obj = nil
		return h.nextCol, nil
	}
	obj := h.shape.NewRecord()
	h.parent.obj[h.propName] = obj
	h.cell.obj = obj
	return h.col + 1, nil
}

func (h *singleObjectHandler) reset() {
	h.cell.obj = nil
}

// singleRefHandler writes the canonical reference value of a monomorphic,
// unfetched reference property.
type singleRefHandler struct {
	baseHandler
	propName   string
	targetName string
	idEx       extract.Func
	required   bool
	parent     *objectCell
}

func (h *singleRefHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if id == nil {
		if h.required {
			return 0, dataErr(ErrCodeNullValue, rowNum, h.col,
				"got NULL for non-optional reference %q", h.propName)
		}
		return h.col + 1, nil
	}
	h.parent.obj[h.propName] = record.Ref(record.RefValue(h.targetName, id))
	return h.col + 1, nil
}

func (h *singleRefHandler) reset() {}
