package parser

import (
	"strconv"

	"github.com/roach88/rsparser/internal/extract"
	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// Parser transforms a flat result set into a forest of hierarchical records.
//
// A parser is constructed for one top record type, initialized once with a
// columns markup, and then fed rows. Feeding is strictly synchronous; a
// parser must not be used from more than one goroutine at a time. After the
// last row, Records and ReferredRecords expose the accumulated forest.
type Parser struct {
	lib        *schema.Library
	topType    *schema.RecordTypeDesc
	extractors map[string]extract.Func

	markup     []string
	labelIndex map[string]int
	handlers   []handler
	numColumns int

	records       []record.Object
	referred      map[string]record.Object
	referredOrder []string

	rowsProcessed int
	curRowNum     int
	skipNextNRows int
	refSpans      map[string]*refSpan
}

// refSpan tracks how many rows one fetched referent consumed the first time
// it was read through a given markup column. Later sightings through the
// same column fast-forward the walk past the driver's repeated block.
type refSpan struct {
	startRow int
	rows     int
	ended    bool
	noSkip   bool
}

// handler is the per-column state machine interface. execute consumes the
// cell at the handler's column and returns the column index the row walk
// resumes at; handlers thereby skip over columns of absent subtrees and
// already-materialized referents.
type handler interface {
	colIndex() int
	execute(rowNum int, raw any) (int, error)
	reset()
}

// anchorHandler is implemented by handlers whose column bounds subtrees in
// the output: the top record id and every collection anchor.
type anchorHandler interface {
	handler

	// empty marks the anchor's collection as seen with no elements, when an
	// ancestor anchor nullifies the subtree containing it.
	empty(upperColInd int)

	// setNextAnchor links the child anchor on the collection axis. An
	// anchor has at most one linked child; a second link reports the
	// multiple-collection-axes condition.
	setNextAnchor(a anchorHandler) bool

	// nextAnchor returns the linked child anchor, or nil.
	nextAnchor() anchorHandler
}

// objectCell holds the object a nesting level currently writes into. The
// handler that owns a level (top id, nested object, collection anchor,
// fetched reference) updates the cell; the level's property handlers read it.
type objectCell struct {
	obj record.Object
}

// New constructs a parser for the given record type.
// The extractor registry is snapshotted here: extractors registered later
// do not affect this parser.
func New(lib *schema.Library, topRecordTypeName string) (*Parser, error) {
	if lib == nil {
		return nil, usageErr(ErrCodeBadArgument, "nil record-types library")
	}
	topType, ok := lib.RecordTypeDesc(topRecordTypeName)
	if !ok {
		return nil, usageErr(ErrCodeUnknownRecordType, "unknown record type %q", topRecordTypeName)
	}
	return &Parser{
		lib:        lib,
		topType:    topType,
		extractors: extract.Snapshot(),
		referred:   make(map[string]record.Object),
		refSpans:   make(map[string]*refSpan),
	}, nil
}

// TopRecordTypeName returns the name of the record type the parser produces.
func (p *Parser) TopRecordTypeName() string { return p.topType.Name() }

// Markup returns the column labels the parser was initialized with.
func (p *Parser) Markup() []string { return p.markup }

// Init compiles the columns markup into the handler array.
// Must be called exactly once before the first FeedRow.
func (p *Parser) Init(markup []string) error {
	if p.handlers != nil {
		return usageErr(ErrCodeAlreadyInitialized, "markup already initialized")
	}
	if len(markup) == 0 {
		return usageErr(ErrCodeBadArgument, "empty markup")
	}

	handlers, err := newCompiler(p).compile(markup)
	if err != nil {
		return err
	}

	p.markup = append([]string(nil), markup...)
	p.handlers = handlers
	p.numColumns = len(handlers)
	p.labelIndex = make(map[string]int, len(markup))
	for i, lbl := range markup {
		p.labelIndex[lbl] = i
	}
	return nil
}

// FeedRow advances the parser by one row given as a positional vector.
// The vector length must equal the markup length.
func (p *Parser) FeedRow(vals []any) error {
	if p.handlers == nil {
		return usageErr(ErrCodeNotInitialized, "markup not initialized")
	}
	if len(vals) != p.numColumns {
		return usageErr(ErrCodeBadArgument, "row has %d cells, markup has %d columns", len(vals), p.numColumns)
	}
	return p.feed(vals)
}

// FeedRowMap advances the parser by one row given in associative form,
// keyed by markup label. Labels absent from the map read as null cells.
func (p *Parser) FeedRowMap(row map[string]any) error {
	if p.handlers == nil {
		return usageErr(ErrCodeNotInitialized, "markup not initialized")
	}
	vals := make([]any, p.numColumns)
	for lbl, v := range row {
		ind, ok := p.labelIndex[lbl]
		if !ok {
			return usageErr(ErrCodeBadArgument, "unknown column label %q", lbl)
		}
		vals[ind] = v
	}
	return p.feed(vals)
}

func (p *Parser) feed(vals []any) error {
	rowNum := p.rowsProcessed
	p.rowsProcessed++

	if p.skipNextNRows > 0 {
		p.skipNextNRows--
		return nil
	}

	p.curRowNum = rowNum
	colInd := 0
	for colInd < p.numColumns {
		next, err := p.handlers[colInd].execute(rowNum, vals[colInd])
		if err != nil {
			return err
		}
		colInd = next
	}
	return nil
}

// Records returns the accumulated top records in first-sight order.
// Callers must not mutate the returned slice while the parser is in use.
func (p *Parser) Records() []record.Object {
	if p.records == nil {
		return []record.Object{}
	}
	return p.records
}

// ReferredRecords returns the fetched referred records keyed by reference
// value. Callers must not mutate the returned map while the parser is in use.
func (p *Parser) ReferredRecords() map[string]record.Object { return p.referred }

// ReferredRefs returns the reference values of fetched referred records in
// first-sight order.
func (p *Parser) ReferredRefs() []string { return p.referredOrder }

// RowsProcessed returns the number of rows fed so far, including skipped ones.
func (p *Parser) RowsProcessed() int { return p.rowsProcessed }

// Forest returns the parse result as one value: the records list plus the
// referred records table keyed by reference value. Convenient for
// serialization; the underlying containers are shared with the parser.
func (p *Parser) Forest() record.Object {
	recs := &record.List{Elems: make([]record.Value, len(p.records))}
	for i, r := range p.records {
		recs.Elems[i] = r
	}
	referred := record.Object{}
	for ref, rec := range p.referred {
		referred[ref] = rec
	}
	return record.Object{
		"records":         recs,
		"referredRecords": referred,
	}
}

// Reset clears the accumulated records, referred records, row counters and
// every handler's local state. The compiled handler array persists, so the
// parser can be fed a fresh result set for the same markup.
func (p *Parser) Reset() {
	p.curRowNum = p.rowsProcessed
	for _, h := range p.handlers {
		h.reset()
	}
	p.records = nil
	p.referred = make(map[string]record.Object)
	p.referredOrder = nil
	p.rowsProcessed = 0
	p.curRowNum = 0
	p.skipNextNRows = 0
	p.refSpans = make(map[string]*refSpan)
}

// resetChain restores the local state of every handler downstream of a
// transitioning anchor, preparing them for the new subtree.
func (p *Parser) resetChain(anchorColInd int) {
	for i := anchorColInd + 1; i < len(p.handlers); i++ {
		p.handlers[i].reset()
	}
}

// emptyChildAnchors marks every anchor inside a nullified subtree as seen
// with no elements.
func (p *Parser) emptyChildAnchors(upperColInd, nextColInd int) {
	for i := upperColInd + 1; i < nextColInd && i < len(p.handlers); i++ {
		if a, ok := p.handlers[i].(anchorHandler); ok {
			a.empty(upperColInd)
		}
	}
}

func refSpanKey(ref string, colInd int) string {
	return ref + "|" + strconv.Itoa(colInd)
}

// beginReferredRecord starts (or short-circuits) reading a fetched referred
// record. It returns the record object to populate and whether the record
// is already materialized, in which case the caller skips the referent's
// columns and the parser may fast-forward whole repeated rows.
func (p *Parser) beginReferredRecord(desc *schema.RecordTypeDesc, ref string, colInd int, noSkip bool) (record.Object, bool) {
	key := refSpanKey(ref, colInd)
	if span, ok := p.refSpans[key]; ok && span.ended && !span.noSkip && span.rows > 1 {
		p.skipNextNRows = span.rows - 1
	}

	if rec, ok := p.referred[ref]; ok {
		return rec, true
	}

	if _, ok := p.refSpans[key]; !ok {
		p.refSpans[key] = &refSpan{startRow: p.curRowNum, noSkip: noSkip}
	}

	rec := desc.NewRecord()
	p.referred[ref] = rec
	p.referredOrder = append(p.referredOrder, ref)
	return rec, false
}

// endReferredRecord closes the row span of a fetched referent. It fires
// from the owning handler's reset, i.e. on the first ancestor anchor
// transition after the referent's block of rows.
func (p *Parser) endReferredRecord(ref string, colInd int) {
	span, ok := p.refSpans[refSpanKey(ref, colInd)]
	if !ok || span.ended {
		return
	}
	span.rows = p.curRowNum - span.startRow
	if span.rows < 1 {
		span.rows = 1
	}
	span.ended = true
}
