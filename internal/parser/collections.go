package parser

import (
	"github.com/roach88/rsparser/internal/extract"
	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// collectionState tracks an anchor's view of its collection within the
// current owning scope.
type collectionState int

const (
	// collectionUnset means the anchor has not seen a cell in this scope.
	collectionUnset collectionState = iota
	// collectionPresent means the collection was allocated and has elements.
	collectionPresent
	// collectionAbsent means the collection was reported null (or the
	// subtree was nullified by an ancestor anchor).
	collectionAbsent
)

// stringifyAnchor renders an anchor value or map key as the collection's
// canonical string key. Ref-typed keys render as "<Type>#<id>".
func stringifyAnchor(v record.Value, refTarget string) string {
	if refTarget != "" {
		return record.RefValue(refTarget, v)
	}
	switch val := v.(type) {
	case record.String:
		return string(val)
	case record.Number:
		return record.NumberID(val)
	case record.Bool:
		if val {
			return "true"
		}
		return "false"
	case record.Datetime:
		return string(val)
	default:
		return ""
	}
}

// arraySingleRowAnchor anchors a scalar (or unfetched ref) array. Elements
// are single-row: every row within the owning scope carries one element in
// the companion value column.
type arraySingleRowAnchor struct {
	anchorBase
	propName string
	isNull   extract.Func
	parent   *objectCell
	list     *record.List
	state    collectionState
}

func (h *arraySingleRowAnchor) execute(rowNum int, raw any) (int, error) {
	null := isNullCell(h.isNull, raw, rowNum, h.col)

	switch h.state {
	case collectionUnset:
		if null {
			h.state = collectionAbsent
			return h.col + 2, nil
		}
		h.list = &record.List{}
		h.parent.obj[h.propName] = h.list
		h.state = collectionPresent
		return h.col + 1, nil

	case collectionPresent:
		if null {
			return 0, dataErr(ErrCodeUnexpectedNull, rowNum, h.col,
				"unexpected NULL in anchor column of array %q", h.propName)
		}
		return h.col + 1, nil

	default: // collectionAbsent
		if null {
			return 0, dataErr(ErrCodeRepeatedNullAnchor, rowNum, h.col,
				"repeated NULL in anchor column of array %q", h.propName)
		}
		return 0, dataErr(ErrCodeNullExpected, rowNum, h.col,
			"NULL expected in anchor column of array %q", h.propName)
	}
}

func (h *arraySingleRowAnchor) reset() {
	h.state = collectionUnset
	h.list = nil
}

func (h *arraySingleRowAnchor) empty(int) {
	h.state = collectionAbsent
}

// mapSingleRowAnchor anchors a scalar (or unfetched ref) map. The anchor
// cell is the map key; the companion value column carries the element.
type mapSingleRowAnchor struct {
	anchorBase
	propName     string
	keyEx        extract.Func
	keyRefTarget string
	parent       *objectCell
	m            record.Map
	state        collectionState
	curKey       string
	keysSeen     map[string]bool
}

func (h *mapSingleRowAnchor) execute(rowNum int, raw any) (int, error) {
	kv := h.keyEx(raw, rowNum, h.col)

	if kv == nil {
		switch h.state {
		case collectionUnset:
			h.state = collectionAbsent
			return h.col + 2, nil
		case collectionPresent:
			return 0, dataErr(ErrCodeUnexpectedNull, rowNum, h.col,
				"unexpected NULL in key column of map %q", h.propName)
		default:
			return 0, dataErr(ErrCodeRepeatedNullAnchor, rowNum, h.col,
				"repeated NULL in key column of map %q", h.propName)
		}
	}

	if h.state == collectionAbsent {
		return 0, dataErr(ErrCodeNullExpected, rowNum, h.col,
			"NULL expected in key column of map %q", h.propName)
	}

	key := stringifyAnchor(kv, h.keyRefTarget)
	if h.keysSeen[key] {
		return 0, dataErr(ErrCodeStuckAnchor, rowNum, h.col,
			"repeated key %q in map %q", key, h.propName)
	}

	if h.state == collectionUnset {
		h.m = record.Map{}
		h.parent.obj[h.propName] = h.m
		h.state = collectionPresent
	}
	h.keysSeen[key] = true
	h.curKey = key
	return h.col + 1, nil
}

func (h *mapSingleRowAnchor) reset() {
	h.state = collectionUnset
	h.m = nil
	h.curKey = ""
	h.keysSeen = make(map[string]bool)
}

func (h *mapSingleRowAnchor) empty(int) {
	h.state = collectionAbsent
}

// valueElementHandler writes one scalar collection element. Array elements
// keep null slots; null map elements are not stored.
type valueElementHandler struct {
	baseHandler
	ex  extract.Func
	arr *arraySingleRowAnchor
	mp  *mapSingleRowAnchor
}

func (h *valueElementHandler) execute(rowNum int, raw any) (int, error) {
	v := h.ex(raw, rowNum, h.col)
	if h.arr != nil {
		if v == nil {
			h.arr.list.Append(record.Null{})
		} else {
			h.arr.list.Append(v)
		}
	} else if v != nil {
		h.mp.m[h.mp.curKey] = v
	}
	return h.col + 1, nil
}

func (h *valueElementHandler) reset() {}

// refElementHandler writes one unfetched reference collection element.
type refElementHandler struct {
	baseHandler
	targetName string
	idEx       extract.Func
	arr        *arraySingleRowAnchor
	mp         *mapSingleRowAnchor
}

func (h *refElementHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if h.arr != nil {
		if id == nil {
			h.arr.list.Append(record.Null{})
		} else {
			h.arr.list.Append(record.Ref(record.RefValue(h.targetName, id)))
		}
	} else if id != nil {
		h.mp.m[h.mp.curKey] = record.Ref(record.RefValue(h.targetName, id))
	}
	return h.col + 1, nil
}

func (h *refElementHandler) reset() {}

// collectionMode selects how an objectCollectionAnchor materializes elements.
type collectionMode int

const (
	// collectSimpleObject allocates monomorphic element objects directly.
	collectSimpleObject collectionMode = iota
	// collectDeferred leaves element materialization to the tier or element
	// handlers that follow the anchor (polymorphic and fetched-ref elements).
	collectDeferred
)

// objectCollectionAnchor anchors a multi-row collection: object arrays and
// maps, polymorphic element collections, and fetched reference collections.
// The anchor cell carries the element id (arrays) or the map key; a value
// change bounds the previous element's subtree.
type objectCollectionAnchor struct {
	anchorBase
	propName     string
	isMap        bool
	keyEx        extract.Func
	keyRefTarget string
	mode         collectionMode
	shape        *schema.RecordTypeDesc
	idPropName   string
	keyPropName  string
	parent       *objectCell
	elemCell     *objectCell

	state      collectionState
	lastKey    string
	keysSeen   map[string]bool
	list       *record.List
	m          record.Map
	hasValue   bool
	pendingKey string
	pendingVal record.Value
}

func (h *objectCollectionAnchor) execute(rowNum int, raw any) (int, error) {
	v := h.keyEx(raw, rowNum, h.col)

	if v == nil {
		switch h.state {
		case collectionUnset:
			h.state = collectionAbsent
			// Collections are trailing at every level, so the whole rest of
			// the row belongs to the absent subtree.
			return h.p.numColumns, nil
		case collectionAbsent:
			return 0, dataErr(ErrCodeRepeatedNullAnchor, rowNum, h.col,
				"repeated NULL in anchor column of %q", h.propName)
		default:
			return 0, dataErr(ErrCodeUnexpectedNull, rowNum, h.col,
				"unexpected NULL in anchor column of %q", h.propName)
		}
	}

	if h.state == collectionAbsent {
		return 0, dataErr(ErrCodeNullExpected, rowNum, h.col,
			"NULL expected in anchor column of %q", h.propName)
	}

	key := stringifyAnchor(v, h.keyRefTarget)
	if h.state == collectionPresent && key == h.lastKey {
		// The element continues across rows through its nested collection.
		if h.next == nil {
			return 0, dataErr(ErrCodeNoAnchorChange, rowNum, h.col,
				"at least one anchor must change in each row")
		}
		return h.next.colIndex(), nil
	}

	if h.isMap && h.keysSeen[key] {
		return 0, dataErr(ErrCodeStuckAnchor, rowNum, h.col,
			"repeated key %q in map %q", key, h.propName)
	}

	if h.state == collectionUnset {
		if h.isMap {
			h.m = record.Map{}
			h.parent.obj[h.propName] = h.m
		} else {
			h.list = &record.List{}
			h.parent.obj[h.propName] = h.list
		}
		h.state = collectionPresent
	}

	h.p.resetChain(h.col)
	h.lastKey = key
	h.pendingKey = key
	h.pendingVal = v
	h.hasValue = false
	if h.isMap {
		h.keysSeen[key] = true
	}

	if h.mode == collectSimpleObject {
		obj := h.shape.NewRecord()
		h.bindElement(obj)
		h.elemCell.obj = obj
	}
	return h.col + 1, nil
}

// bindElement writes the anchor-derived id or key property into the element
// object and attaches it to the collection.
func (h *objectCollectionAnchor) bindElement(obj record.Object) {
	if h.isMap {
		if h.keyPropName != "" {
			obj[h.keyPropName] = h.pendingVal
		}
		h.m[h.pendingKey] = obj
	} else {
		if h.idPropName != "" {
			obj[h.idPropName] = h.pendingVal
		}
		h.list.Append(obj)
	}
}

// gotObject attaches a polymorphic element object produced by a subtype
// tier handler. At most one subtype may produce a value per row.
func (h *objectCollectionAnchor) gotObject(rowNum, colInd int, obj record.Object) error {
	if h.hasValue {
		return dataErr(ErrCodeMultiplePolyValues, rowNum, colInd,
			"more than one value for a polymorphic element of %q", h.propName)
	}
	h.hasValue = true
	h.bindElement(obj)
	h.elemCell.obj = obj
	return nil
}

// gotValue attaches a reference element value produced by an element or
// target tier handler.
func (h *objectCollectionAnchor) gotValue(rowNum, colInd int, v record.Value) error {
	if h.hasValue {
		return dataErr(ErrCodeMultiplePolyValues, rowNum, colInd,
			"more than one value for an element of %q", h.propName)
	}
	h.hasValue = true
	if h.isMap {
		h.m[h.pendingKey] = v
	} else {
		h.list.Append(v)
	}
	return nil
}

func (h *objectCollectionAnchor) reset() {
	h.state = collectionUnset
	h.lastKey = ""
	h.keysSeen = make(map[string]bool)
	h.list = nil
	h.m = nil
	h.hasValue = false
	h.pendingKey = ""
	h.pendingVal = nil
	h.elemCell.obj = nil
}

func (h *objectCollectionAnchor) empty(int) {
	h.state = collectionAbsent
}

// collectionSubtypeHandler consumes one subtype discriminator column of a
// polymorphic element collection tier.
type collectionSubtypeHandler struct {
	baseHandler
	subtypeName string
	anchor      *objectCollectionAnchor
	typeProp    string
	shape       *schema.RecordTypeDesc
	isNull      extract.Func
	nextCol     int
	isLast      bool
}

func (h *collectionSubtypeHandler) execute(rowNum int, raw any) (int, error) {
	if isNullCell(h.isNull, raw, rowNum, h.col) {
		h.p.emptyChildAnchors(h.col, h.nextCol)
		if h.isLast && !h.anchor.hasValue {
			return 0, dataErr(ErrCodeNoPolyValue, rowNum, h.col,
				"no subtype value for an element of %q", h.anchor.propName)
		}
		return h.nextCol, nil
	}

	obj := h.shape.NewRecord()
	obj[h.typeProp] = record.String(h.subtypeName)
	if err := h.anchor.gotObject(rowNum, h.col, obj); err != nil {
		return 0, err
	}
	return h.col + 1, nil
}

func (h *collectionSubtypeHandler) reset() {}

// collectionRefTargetHandler consumes one target column of a polymorphic
// reference collection tier, optionally owning a referred record level for
// fetched polymorphic references.
type collectionRefTargetHandler struct {
	baseHandler
	targetName string
	targetDesc *schema.RecordTypeDesc
	idEx       extract.Func
	anchor     *objectCollectionAnchor
	fetched    bool
	cell       *objectCell
	nextCol    int
	noSkip     bool
	isLast     bool
	openRef    string
}

func (h *collectionRefTargetHandler) execute(rowNum int, raw any) (int, error) {
	id := h.idEx(raw, rowNum, h.col)
	if id == nil {
		if h.fetched {
			h.p.emptyChildAnchors(h.col, h.nextCol)
			h.cell.obj = nil
		}
		if h.isLast && !h.anchor.hasValue {
			return 0, dataErr(ErrCodeNoPolyValue, rowNum, h.col,
				"no target value for an element of %q", h.anchor.propName)
		}
		return h.nextCol, nil
	}

	ref := record.RefValue(h.targetName, id)
	if err := h.anchor.gotValue(rowNum, h.col, record.Ref(ref)); err != nil {
		return 0, err
	}
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

func (h *collectionRefTargetHandler) reset() {
	if h.openRef != "" {
		h.p.endReferredRecord(h.openRef, h.col)
		h.openRef = ""
	}
	if h.cell != nil {
		h.cell.obj = nil
	}
}
