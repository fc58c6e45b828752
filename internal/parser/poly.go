package parser

import (
	"github.com/roach88/rsparser/internal/extract"
	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// polyObjectDispatcher consumes the property column of a polymorphic
// nested object. The dispatch itself happens in the subtype tier; the
// dispatcher only opens the slot for the row.
type polyObjectDispatcher struct {
	baseHandler
	propName string
	typeProp string
	required bool
	parent   *objectCell
	cell     *objectCell
}

func (h *polyObjectDispatcher) execute(int, any) (int, error) {
	h.cell.obj = nil
	return h.col + 1, nil
}

func (h *polyObjectDispatcher) reset() {
	h.cell.obj = nil
}

// polyObjectSubtypeHandler consumes one subtype discriminator column of a
// polymorphic object tier. A non-null cell claims the slot for its subtype.
type polyObjectSubtypeHandler struct {
	baseHandler
	subtypeName string
	disp        *polyObjectDispatcher
	shape       *schema.RecordTypeDesc
	isNull      extract.Func
	nextCol     int
	isLast      bool
}

func (h *polyObjectSubtypeHandler) execute(rowNum int, raw any) (int, error) {
	if isNullCell(h.isNull, raw, rowNum, h.col) {
		h.p.emptyChildAnchors(h.col, h.nextCol)
		if h.isLast && h.disp.required && h.disp.cell.obj == nil {
			return 0, dataErr(ErrCodeNoPolyValue, rowNum, h.col,
				"no value for non-optional polymorphic object %q", h.disp.propName)
		}
		return h.nextCol, nil
	}

	if existing := h.disp.cell.obj; existing != nil {
		if !record.Equal(existing[h.disp.typeProp], record.String(h.subtypeName)) {
			return 0, dataErr(ErrCodeMultiplePolyValues, rowNum, h.col,
				"more than one value for a polymorphic object %q", h.disp.propName)
		}
		return h.col + 1, nil
	}

	obj := h.shape.NewRecord()
	obj[h.disp.typeProp] = record.String(h.subtypeName)
	h.disp.parent.obj[h.disp.propName] = obj
	h.disp.cell.obj = obj
	return h.col + 1, nil
}

func (h *polyObjectSubtypeHandler) reset() {}

// polyRefDispatcher consumes the property column of a polymorphic
// reference. Each target column in the tier may claim the slot.
type polyRefDispatcher struct {
	baseHandler
	propName string
	required bool
	parent   *objectCell
	gotRef   bool
}

func (h *polyRefDispatcher) execute(int, any) (int, error) {
	h.gotRef = false
	return h.col + 1, nil
}

func (h *polyRefDispatcher) reset() {
	h.gotRef = false
}

// polyRefTargetHandler consumes one target column of a polymorphic
// reference tier. For fetched polymorphic references the handler also owns
// the referred record level of its target type.
type polyRefTargetHandler struct {
	baseHandler
	disp       *polyRefDispatcher
	targetName string
	targetDesc *schema.RecordTypeDesc
	idEx       extract.Func
	fetched    bool
	cell       *objectCell
	nextCol    int
	noSkip     bool
	isLast     bool
	openRef    string
}

func (h *polyRefTargetHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if id == nil {
		if h.fetched {
			h.p.emptyChildAnchors(h.col, h.nextCol)
			h.cell.obj = nil
		}
		if h.isLast && !h.disp.gotRef && h.disp.required {
			return 0, dataErr(ErrCodeNoPolyValue, rowNum, h.col,
				"no value for non-optional polymorphic reference %q", h.disp.propName)
		}
		return h.nextCol, nil
	}

	if h.disp.gotRef {
		return 0, dataErr(ErrCodeMultiplePolyValues, rowNum, h.col,
			"more than one value for a polymorphic reference %q", h.disp.propName)
	}
	h.disp.gotRef = true

	ref := record.RefValue(h.targetName, id)
	h.disp.parent.obj[h.disp.propName] = record.Ref(ref)
	if !h.fetched {
		return h.nextCol, nil
	}

	rec, materialized := h.p.beginReferredRecord(h.targetDesc, ref, h.col, h.noSkip)
	h.cell.obj = rec
	if materialized {
		return h.nextCol, nil
	}
	h.openRef = ref
	return h.col + 1, nil
}

func (h *polyRefTargetHandler) reset() {
	if h.openRef != "" {
		h.p.endReferredRecord(h.openRef, h.col)
		h.openRef = ""
	}
	if h.cell != nil {
		h.cell.obj = nil
	}
}
