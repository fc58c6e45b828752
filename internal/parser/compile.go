package parser

import (
	"slices"

	"github.com/roach88/rsparser/internal/extract"
	"github.com/roach88/rsparser/internal/schema"
)

// compiler performs the recursive descent over the markup sequence, binding
// each column index to a handler variant and its bound state. All dispatch
// decisions are made here, once; the row walk itself is branch-light.
type compiler struct {
	p        *Parser
	labels   []label
	raw      []string
	handlers []handler
	col      int
}

// levelCtx carries the compilation context of one object level.
type levelCtx struct {
	prefix string
	shape  *schema.RecordTypeDesc
	cell   *objectCell
	anchor anchorHandler
}

func newCompiler(p *Parser) *compiler {
	return &compiler{p: p}
}

func (c *compiler) compile(markup []string) ([]handler, error) {
	labels, err := parseMarkup(markup)
	if err != nil {
		return nil, err
	}
	c.labels = labels
	c.raw = markup
	c.handlers = make([]handler, 0, len(labels))

	top, err := c.compileTopID()
	if err != nil {
		return nil, err
	}

	ctx := levelCtx{
		prefix: "",
		shape:  c.p.topType,
		cell:   top.cell,
		anchor: top,
	}
	if err := c.compileLevel(ctx); err != nil {
		return nil, err
	}

	if c.col < len(c.labels) {
		return nil, markupErr(ErrCodeBadPrefix, c.col, c.raw[c.col], "unexpected column prefix")
	}
	return c.handlers, nil
}

// compileTopID builds the anchor at column 0, which must resolve to the top
// record type's id property.
func (c *compiler) compileTopID() (*topRecordIDHandler, error) {
	lb := c.labels[0]
	idProp := c.p.topType.IDProperty()
	if lb.prefix != "" || lb.fetched || lb.name != idProp.Name() {
		return nil, markupErr(ErrCodeFirstColumnNotID, 0, c.raw[0],
			"first column must be the %q id property of %s", idProp.Name(), c.p.topType.Name())
	}
	idEx, err := c.extractor(string(idProp.ScalarValueType()))
	if err != nil {
		return nil, err
	}
	top := &topRecordIDHandler{
		anchorBase: c.anchorBase(),
		propName:   idProp.Name(),
		idEx:       idEx,
		cell:       &objectCell{},
	}
	c.append(top)
	return top, nil
}

// compileLevel consumes every column of one object level, returning control
// to the parent when a column's prefix is not the level's prefix.
func (c *compiler) compileLevel(ctx levelCtx) error {
	exhausted := false
	for c.col < len(c.labels) {
		lb := c.labels[c.col]
		if lb.prefix != ctx.prefix {
			return nil
		}
		if exhausted {
			return markupErr(ErrCodeLevelExhausted, c.col, c.raw[c.col],
				"no columns allowed after a collection within one object level")
		}

		prop, ok := ctx.shape.Property(lb.name)
		if !ok {
			return markupErr(ErrCodeUnknownProperty, c.col, c.raw[c.col],
				"no property %q in %s", lb.name, ctx.shape.Name())
		}
		if lb.fetched && !prop.IsRef() {
			return markupErr(ErrCodeFetchedNonRef, c.col, c.raw[c.col],
				"fetched reference marker on non-reference property %q", lb.name)
		}

		var err error
		switch {
		case prop.IsScalar():
			err = c.compileScalarProperty(ctx, prop, lb)
		case prop.IsObject() || prop.IsPolymorph() || lb.fetched:
			err = c.compileMultiRowCollection(ctx, prop, lb)
			exhausted = true
		default:
			err = c.compileSingleRowCollection(ctx, prop)
			exhausted = true
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileScalarProperty(ctx levelCtx, prop *schema.PropertyDesc, lb label) error {
	switch {
	case prop.IsObject() && !prop.IsPolymorph():
		return c.compileSingleObject(ctx, prop)
	case prop.IsObject():
		return c.compilePolyObject(ctx, prop)
	case prop.IsRef() && prop.IsPolymorph():
		return c.compilePolyRef(ctx, prop, lb.fetched)
	case prop.IsRef() && lb.fetched:
		return c.compileSingleFetchedRef(ctx, prop)
	case prop.IsRef():
		return c.compileSingleRef(ctx, prop)
	default:
		ex, err := c.extractor(string(prop.ScalarValueType()))
		if err != nil {
			return err
		}
		c.append(&singleValueHandler{
			baseHandler: c.base(),
			propName:    prop.Name(),
			ex:          ex,
			required:    prop.Required(),
			parent:      ctx.cell,
		})
		return nil
	}
}

func (c *compiler) compileSingleObject(ctx levelCtx, prop *schema.PropertyDesc) error {
	isNull, err := c.extractor(extract.IsNull)
	if err != nil {
		return err
	}
	h := &singleObjectHandler{
		baseHandler: c.base(),
		propName:    prop.Name(),
		isNull:      isNull,
		shape:       prop.Nested(),
		parent:      ctx.cell,
		cell:        &objectCell{},
	}
	c.append(h)

	pfx, err := c.childPrefix(ctx.prefix)
	if err != nil {
		return err
	}
	child := levelCtx{prefix: pfx, shape: prop.Nested(), cell: h.cell, anchor: ctx.anchor}
	if err := c.compileLevel(child); err != nil {
		return err
	}
	h.nextCol = c.col
	return nil
}

func (c *compiler) compilePolyObject(ctx levelCtx, prop *schema.PropertyDesc) error {
	disp := &polyObjectDispatcher{
		baseHandler: c.base(),
		propName:    prop.Name(),
		typeProp:    prop.TypePropertyName(),
		required:    prop.Required(),
		parent:      ctx.cell,
		cell:        &objectCell{},
	}
	c.append(disp)

	tierPfx, err := c.childPrefix(ctx.prefix)
	if err != nil {
		return err
	}

	var last *polyObjectSubtypeHandler
	for c.col < len(c.labels) && c.labels[c.col].prefix == tierPfx {
		lb := c.labels[c.col]
		if lb.fetched {
			return markupErr(ErrCodeFetchedNonRef, c.col, c.raw[c.col],
				"fetched reference marker on a subtype column")
		}
		sub, ok := prop.Subtype(lb.name)
		if !ok {
			return markupErr(ErrCodeUnknownSubtype, c.col, c.raw[c.col],
				"no subtype %q of polymorphic object %q", lb.name, prop.Name())
		}
		isNull, err := c.extractor(extract.IsNull)
		if err != nil {
			return err
		}
		sh := &polyObjectSubtypeHandler{
			baseHandler: c.base(),
			subtypeName: lb.name,
			disp:        disp,
			shape:       sub,
			isNull:      isNull,
		}
		c.append(sh)

		if err := c.compileNestedTier(tierPfx, sub, disp.cell, ctx.anchor); err != nil {
			return err
		}
		sh.nextCol = c.col
		last = sh
	}
	if last == nil {
		return markupErr(ErrCodeBadPrefix, c.col-1, c.raw[c.col-1],
			"polymorphic object %q has no subtype columns", prop.Name())
	}
	last.isLast = true
	return nil
}

// compileNestedTier compiles the optional nested columns of one subtype or
// target tier entry.
func (c *compiler) compileNestedTier(tierPfx string, shape *schema.RecordTypeDesc, cell *objectCell, anchor anchorHandler) error {
	if c.col >= len(c.labels) || len(c.labels[c.col].prefix) <= len(tierPfx) {
		return nil
	}
	child := levelCtx{prefix: c.labels[c.col].prefix, shape: shape, cell: cell, anchor: anchor}
	return c.compileLevel(child)
}

func (c *compiler) compileSingleRef(ctx levelCtx, prop *schema.PropertyDesc) error {
	target := prop.RefTarget()
	idEx, err := c.targetIDExtractor(target)
	if err != nil {
		return err
	}
	c.append(&singleRefHandler{
		baseHandler: c.base(),
		propName:    prop.Name(),
		targetName:  target,
		idEx:        idEx,
		required:    prop.Required(),
		parent:      ctx.cell,
	})
	return nil
}

func (c *compiler) compileSingleFetchedRef(ctx levelCtx, prop *schema.PropertyDesc) error {
	target := prop.RefTarget()
	targetDesc, _ := c.p.lib.RecordTypeDesc(target)
	idEx, err := c.targetIDExtractor(target)
	if err != nil {
		return err
	}
	h := &singleFetchedRefHandler{
		baseHandler: c.base(),
		propName:    prop.Name(),
		targetName:  target,
		targetDesc:  targetDesc,
		idEx:        idEx,
		required:    prop.Required(),
		parent:      ctx.cell,
		cell:        &objectCell{},
	}
	c.append(h)

	pfx, err := c.childPrefix(ctx.prefix)
	if err != nil {
		return err
	}
	child := levelCtx{prefix: pfx, shape: targetDesc, cell: h.cell, anchor: ctx.anchor}
	if err := c.compileLevel(child); err != nil {
		return err
	}
	h.nextCol = c.col
	h.noSkip = !c.hasAnchorsIn(h.col+1, c.col)
	return nil
}

func (c *compiler) compilePolyRef(ctx levelCtx, prop *schema.PropertyDesc, fetched bool) error {
	disp := &polyRefDispatcher{
		baseHandler: c.base(),
		propName:    prop.Name(),
		required:    prop.Required(),
		parent:      ctx.cell,
	}
	c.append(disp)

	tierPfx, err := c.childPrefix(ctx.prefix)
	if err != nil {
		return err
	}

	var last *polyRefTargetHandler
	for c.col < len(c.labels) && c.labels[c.col].prefix == tierPfx {
		lb := c.labels[c.col]
		if lb.fetched {
			return markupErr(ErrCodeFetchedNonRef, c.col, c.raw[c.col],
				"fetched reference marker belongs on the property column")
		}
		if !slices.Contains(prop.RefTargets(), lb.name) {
			return markupErr(ErrCodeUnknownSubtype, c.col, c.raw[c.col],
				"no reference target %q of polymorphic reference %q", lb.name, prop.Name())
		}
		targetDesc, _ := c.p.lib.RecordTypeDesc(lb.name)
		idEx, err := c.targetIDExtractor(lb.name)
		if err != nil {
			return err
		}
		th := &polyRefTargetHandler{
			baseHandler: c.base(),
			disp:        disp,
			targetName:  lb.name,
			targetDesc:  targetDesc,
			idEx:        idEx,
			fetched:     fetched,
		}
		if fetched {
			th.cell = &objectCell{}
		}
		c.append(th)

		if fetched {
			if err := c.compileNestedTier(tierPfx, targetDesc, th.cell, ctx.anchor); err != nil {
				return err
			}
		}
		th.nextCol = c.col
		th.noSkip = !c.hasAnchorsIn(th.col+1, c.col)
		last = th
	}
	if last == nil {
		return markupErr(ErrCodeBadPrefix, c.col-1, c.raw[c.col-1],
			"polymorphic reference %q has no target columns", prop.Name())
	}
	last.isLast = true
	return nil
}

// compileSingleRowCollection compiles a scalar or unfetched monomorphic
// reference collection: an anchor column followed by one element value
// column with an empty name.
func (c *compiler) compileSingleRowCollection(ctx levelCtx, prop *schema.PropertyDesc) error {
	var arr *arraySingleRowAnchor
	var mp *mapSingleRowAnchor
	var a anchorHandler

	if prop.IsArray() {
		isNull, err := c.extractor(extract.IsNull)
		if err != nil {
			return err
		}
		arr = &arraySingleRowAnchor{
			anchorBase: c.anchorBase(),
			propName:   prop.Name(),
			isNull:     isNull,
			parent:     ctx.cell,
		}
		a = arr
	} else {
		keyEx, keyRefTarget, err := c.keyExtractor(prop)
		if err != nil {
			return err
		}
		mp = &mapSingleRowAnchor{
			anchorBase:   c.anchorBase(),
			propName:     prop.Name(),
			keyEx:        keyEx,
			keyRefTarget: keyRefTarget,
			parent:       ctx.cell,
			keysSeen:     make(map[string]bool),
		}
		a = mp
	}
	anchorCol := c.col
	c.append(a)
	if !ctx.anchor.setNextAnchor(a) {
		return markupErr(ErrCodeMultipleAxes, anchorCol, c.raw[anchorCol],
			"more than one collection axis")
	}

	if err := c.expectElementColumn(ctx.prefix); err != nil {
		return err
	}

	if prop.IsRef() {
		target := prop.RefTarget()
		idEx, err := c.targetIDExtractor(target)
		if err != nil {
			return err
		}
		c.append(&refElementHandler{
			baseHandler: c.base(),
			targetName:  target,
			idEx:        idEx,
			arr:         arr,
			mp:          mp,
		})
		return nil
	}

	ex, err := c.extractor(string(prop.ScalarValueType()))
	if err != nil {
		return err
	}
	c.append(&valueElementHandler{baseHandler: c.base(), ex: ex, arr: arr, mp: mp})
	return nil
}

// expectElementColumn validates the empty-name element value column of a
// single-row collection, leaving c.col pointing at it.
func (c *compiler) expectElementColumn(parentPfx string) error {
	if c.col >= len(c.labels) {
		return markupErr(ErrCodeBadPrefix, c.col-1, c.raw[c.col-1],
			"missing collection element column")
	}
	lb := c.labels[c.col]
	if len(lb.prefix) <= len(parentPfx) {
		return markupErr(ErrCodeBadPrefix, c.col, c.raw[c.col],
			"element column prefix is not longer than the collection's")
	}
	if lb.name != "" || lb.fetched {
		return markupErr(ErrCodeBadLabel, c.col, c.raw[c.col],
			"collection element value column must have an empty name")
	}
	return nil
}

// compileMultiRowCollection compiles collections whose elements may span
// several rows: object arrays and maps (monomorphic or polymorphic),
// fetched reference collections, and polymorphic reference collections.
func (c *compiler) compileMultiRowCollection(ctx levelCtx, prop *schema.PropertyDesc, lb label) error {
	a := &objectCollectionAnchor{
		anchorBase: c.anchorBase(),
		propName:   prop.Name(),
		isMap:      prop.IsMap(),
		parent:     ctx.cell,
		elemCell:   &objectCell{},
		keysSeen:   make(map[string]bool),
		mode:       collectDeferred,
	}

	if prop.IsMap() {
		keyEx, keyRefTarget, err := c.keyExtractor(prop)
		if err != nil {
			return err
		}
		a.keyEx = keyEx
		a.keyRefTarget = keyRefTarget
		if prop.IsObject() && prop.KeyPropertyName() != "" {
			a.keyPropName = prop.KeyPropertyName()
		}
	} else {
		switch {
		case prop.IsObject():
			idp := prop.AnchorIDProperty()
			idEx, err := c.extractor(string(idp.ScalarValueType()))
			if err != nil {
				return err
			}
			a.keyEx = idEx
			a.idPropName = idp.Name()
		case prop.IsPolymorph():
			// Target types may disagree on id type; anchor values compare
			// through their canonical string rendering.
			strEx, err := c.extractor(extract.TypeString)
			if err != nil {
				return err
			}
			a.keyEx = strEx
		default:
			idEx, err := c.targetIDExtractor(prop.RefTarget())
			if err != nil {
				return err
			}
			a.keyEx = idEx
		}
	}

	if prop.IsObject() && !prop.IsPolymorph() {
		a.mode = collectSimpleObject
		a.shape = prop.Nested()
	}

	anchorCol := c.col
	c.append(a)
	if !ctx.anchor.setNextAnchor(a) {
		return markupErr(ErrCodeMultipleAxes, anchorCol, c.raw[anchorCol],
			"more than one collection axis")
	}

	switch {
	case prop.IsObject() && !prop.IsPolymorph():
		pfx, err := c.childPrefix(ctx.prefix)
		if err != nil {
			return err
		}
		child := levelCtx{prefix: pfx, shape: prop.Nested(), cell: a.elemCell, anchor: a}
		return c.compileLevel(child)

	case prop.IsObject():
		return c.compileCollectionSubtypes(ctx, prop, a)

	case !prop.IsPolymorph():
		return c.compileFetchedRefElement(ctx, prop, a)

	default:
		return c.compileCollectionRefTargets(ctx, prop, a, lb.fetched)
	}
}

func (c *compiler) compileCollectionSubtypes(ctx levelCtx, prop *schema.PropertyDesc, a *objectCollectionAnchor) error {
	tierPfx, err := c.childPrefix(ctx.prefix)
	if err != nil {
		return err
	}

	var last *collectionSubtypeHandler
	for c.col < len(c.labels) && c.labels[c.col].prefix == tierPfx {
		lb := c.labels[c.col]
		if lb.fetched {
			return markupErr(ErrCodeFetchedNonRef, c.col, c.raw[c.col],
				"fetched reference marker on a subtype column")
		}
		sub, ok := prop.Subtype(lb.name)
		if !ok {
			return markupErr(ErrCodeUnknownSubtype, c.col, c.raw[c.col],
				"no subtype %q of polymorphic collection %q", lb.name, prop.Name())
		}
		isNull, err := c.extractor(extract.IsNull)
		if err != nil {
			return err
		}
		sh := &collectionSubtypeHandler{
			baseHandler: c.base(),
			subtypeName: lb.name,
			anchor:      a,
			typeProp:    prop.TypePropertyName(),
			shape:       sub,
			isNull:      isNull,
		}
		c.append(sh)

		if err := c.compileNestedTier(tierPfx, sub, a.elemCell, a); err != nil {
			return err
		}
		sh.nextCol = c.col
		last = sh
	}
	if last == nil {
		return markupErr(ErrCodeBadPrefix, c.col-1, c.raw[c.col-1],
			"polymorphic collection %q has no subtype columns", prop.Name())
	}
	last.isLast = true
	return nil
}

func (c *compiler) compileFetchedRefElement(ctx levelCtx, prop *schema.PropertyDesc, a *objectCollectionAnchor) error {
	if err := c.expectElementColumn(ctx.prefix); err != nil {
		return err
	}
	elPfx := c.labels[c.col].prefix

	target := prop.RefTarget()
	targetDesc, _ := c.p.lib.RecordTypeDesc(target)
	idEx, err := c.targetIDExtractor(target)
	if err != nil {
		return err
	}
	eh := &fetchedRefElementHandler{
		baseHandler: c.base(),
		targetName:  target,
		targetDesc:  targetDesc,
		idEx:        idEx,
		anchor:      a,
		cell:        &objectCell{},
	}
	c.append(eh)

	if err := c.compileNestedTier(elPfx, targetDesc, eh.cell, a); err != nil {
		return err
	}
	eh.nextCol = c.col
	eh.noSkip = !c.hasAnchorsIn(eh.col+1, c.col)
	return nil
}

func (c *compiler) compileCollectionRefTargets(ctx levelCtx, prop *schema.PropertyDesc, a *objectCollectionAnchor, fetched bool) error {
	tierPfx, err := c.childPrefix(ctx.prefix)
	if err != nil {
		return err
	}

	var last *collectionRefTargetHandler
	for c.col < len(c.labels) && c.labels[c.col].prefix == tierPfx {
		lb := c.labels[c.col]
		if lb.fetched {
			return markupErr(ErrCodeFetchedNonRef, c.col, c.raw[c.col],
				"fetched reference marker belongs on the property column")
		}
		if !slices.Contains(prop.RefTargets(), lb.name) {
			return markupErr(ErrCodeUnknownSubtype, c.col, c.raw[c.col],
				"no reference target %q of polymorphic collection %q", lb.name, prop.Name())
		}
		targetDesc, _ := c.p.lib.RecordTypeDesc(lb.name)
		idEx, err := c.targetIDExtractor(lb.name)
		if err != nil {
			return err
		}
		th := &collectionRefTargetHandler{
			baseHandler: c.base(),
			targetName:  lb.name,
			targetDesc:  targetDesc,
			idEx:        idEx,
			anchor:      a,
			fetched:     fetched,
		}
		if fetched {
			th.cell = &objectCell{}
		}
		c.append(th)

		if fetched {
			if err := c.compileNestedTier(tierPfx, targetDesc, th.cell, a); err != nil {
				return err
			}
		}
		th.nextCol = c.col
		th.noSkip = !c.hasAnchorsIn(th.col+1, c.col)
		last = th
	}
	if last == nil {
		return markupErr(ErrCodeBadPrefix, c.col-1, c.raw[c.col-1],
			"polymorphic collection %q has no target columns", prop.Name())
	}
	last.isLast = true
	return nil
}

func (c *compiler) base() baseHandler {
	return baseHandler{p: c.p, col: c.col}
}

func (c *compiler) anchorBase() anchorBase {
	return anchorBase{baseHandler: baseHandler{p: c.p, col: c.col}}
}

func (c *compiler) append(h handler) {
	c.handlers = append(c.handlers, h)
	c.col++
}

// childPrefix peeks the prefix of the nested level that must follow the
// column just consumed. It must be strictly longer than the parent's.
func (c *compiler) childPrefix(parentPfx string) (string, error) {
	if c.col >= len(c.labels) {
		return "", markupErr(ErrCodeBadPrefix, c.col-1, c.raw[c.col-1],
			"missing nested columns")
	}
	pfx := c.labels[c.col].prefix
	if len(pfx) <= len(parentPfx) {
		return "", markupErr(ErrCodeBadPrefix, c.col, c.raw[c.col],
			"nested level prefix %q is not longer than %q", pfx, parentPfx)
	}
	return pfx, nil
}

func (c *compiler) extractor(name string) (extract.Func, error) {
	fn, ok := c.p.extractors[name]
	if !ok {
		return nil, markupErr(ErrCodeUnknownExtractor, c.col, "",
			"no extractor registered for type %q", name)
	}
	return fn, nil
}

// targetIDExtractor returns the extractor for a record type's id property.
func (c *compiler) targetIDExtractor(typeName string) (extract.Func, error) {
	desc, ok := c.p.lib.RecordTypeDesc(typeName)
	if !ok {
		return nil, markupErr(ErrCodeUnknownSubtype, c.col, "",
			"unknown record type %q", typeName)
	}
	return c.extractor(string(desc.IDProperty().ScalarValueType()))
}

// keyExtractor returns the extractor and ref target for a map property's
// key cells, per the schema's resolved key value type.
func (c *compiler) keyExtractor(prop *schema.PropertyDesc) (extract.Func, string, error) {
	if prop.KeyValueType() == schema.TypeRef {
		target := prop.KeyRefTargetName()
		fn, err := c.targetIDExtractor(target)
		return fn, target, err
	}
	fn, err := c.extractor(string(prop.KeyValueType()))
	return fn, "", err
}

// hasAnchorsIn reports whether any handler in [from, to) is an anchor.
// Fetched references with no anchors below them occupy a single row per
// referent, so no row skipping applies to them.
func (c *compiler) hasAnchorsIn(from, to int) bool {
	for i := from; i < to && i < len(c.handlers); i++ {
		if _, ok := c.handlers[i].(anchorHandler); ok {
			return true
		}
	}
	return false
}
