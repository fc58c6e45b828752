package parser

import (
	"github.com/roach88/rsparser/internal/extract"
	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// singleFetchedRefHandler consumes the id column of a monomorphic fetched
// reference and owns the referred record level that follows it. An already
// materialized referent short-circuits the referent's columns and arms the
// row skipper for the driver's repeated block.
type singleFetchedRefHandler struct {
	baseHandler
	propName   string
	targetName string
	targetDesc *schema.RecordTypeDesc
	idEx       extract.Func
	required   bool
	parent     *objectCell
	cell       *objectCell
	nextCol    int
	noSkip     bool
	openRef    string
}

func (h *singleFetchedRefHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if id == nil {
		h.p.emptyChildAnchors(h.col, h.nextCol)
		h.cell.obj = nil
		if h.required {
			return 0, dataErr(ErrCodeNullValue, rowNum, h.col,
				"got NULL for non-optional reference %q", h.propName)
		}
		return h.nextCol, nil
	}

	ref := record.RefValue(h.targetName, id)
	h.parent.obj[h.propName] = record.Ref(ref)

	rec, materialized := h.p.beginReferredRecord(h.targetDesc, ref, h.col, h.noSkip)
	h.cell.obj = rec
	if materialized {
		return h.nextCol, nil
	}
	h.openRef = ref
	return h.col + 1, nil
}

func (h *singleFetchedRefHandler) reset() {
	if h.openRef != "" {
		h.p.endReferredRecord(h.openRef, h.col)
		h.openRef = ""
	}
	h.cell.obj = nil
}

// fetchedRefElementHandler consumes the referred id column of a
// monomorphic fetched reference collection and owns the referred record
// level that follows it. The collection anchor precedes it and has already
// established the element boundary.
type fetchedRefElementHandler struct {
	baseHandler
	targetName string
	targetDesc *schema.RecordTypeDesc
	idEx       extract.Func
	anchor     *objectCollectionAnchor
	cell       *objectCell
	nextCol    int
	noSkip     bool
	openRef    string
}

func (h *fetchedRefElementHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if id == nil {
		return 0, dataErr(ErrCodeNullRefID, rowNum, h.col,
			"got NULL for the referred record id of a fetched reference element")
	}

	ref := record.RefValue(h.targetName, id)
	if err := h.anchor.gotValue(rowNum, h.col, record.Ref(ref)); err != nil {
		return 0, err
	}

	rec, materialized := h.p.beginReferredRecord(h.targetDesc, ref, h.col, h.noSkip)
	h.cell.obj = rec
	if materialized {
		return h.nextCol, nil
	}
	h.openRef = ref
	return h.col + 1, nil
}

func (h *fetchedRefElementHandler) reset() {
	if h.openRef != "" {
		h.p.endReferredRecord(h.openRef, h.col)
		h.openRef = ""
	}
	h.cell.obj = nil
}
