package parser

import (
	"strings"

	"github.com/roach88/rsparser/internal/record"
	"github.com/roach88/rsparser/internal/schema"
)

// Merge folds another parser's records and referred records into this one.
//
// Both parsers must share the same record-types library, the same top
// record type, and the same records in the same order (typically the same
// query run once per collection axis). Scalar leaves from other overwrite
// this parser's; nested structures merge recursively; referred records
// merge by reference value.
func (p *Parser) Merge(other *Parser) error {
	if other == nil {
		return usageErr(ErrCodeBadArgument, "nil parser")
	}
	if p.handlers == nil || other.handlers == nil {
		return usageErr(ErrCodeNotInitialized, "markup not initialized")
	}
	if p.lib != other.lib || p.topType != other.topType {
		return usageErr(ErrCodeIncompatibleMerge,
			"parsers have different record-types libraries or top record types")
	}
	if len(p.records) != len(other.records) {
		return usageErr(ErrCodeIncompatibleMerge,
			"parsers have %d and %d records", len(p.records), len(other.records))
	}

	idName := p.topType.IDProperty().Name()
	for i := range p.records {
		dst, src := p.records[i], other.records[i]
		if !record.Equal(dst[idName], src[idName]) {
			return usageErr(ErrCodeIncompatibleMerge,
				"records at position %d have different ids", i)
		}
		if err := p.mergeObject(p.topType, dst, src); err != nil {
			return err
		}
	}

	for _, ref := range other.referredOrder {
		src := other.referred[ref]
		dst, ok := p.referred[ref]
		if !ok {
			p.referred[ref] = src
			p.referredOrder = append(p.referredOrder, ref)
			continue
		}
		sep := strings.IndexByte(ref, '#')
		if sep < 0 {
			return usageErr(ErrCodeIncompatibleMerge, "malformed reference value %q", ref)
		}
		desc, ok := p.lib.RecordTypeDesc(ref[:sep])
		if !ok {
			return usageErr(ErrCodeIncompatibleMerge,
				"reference value %q names an unknown record type", ref)
		}
		if err := p.mergeObject(desc, dst, src); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) mergeObject(shape *schema.RecordTypeDesc, dst, src record.Object) error {
	for _, key := range src.SortedKeys() {
		sv := src[key]
		dv, exists := dst[key]
		if !exists {
			dst[key] = sv
			continue
		}

		prop, known := shape.Property(key)
		if !known {
			// Discriminators of enclosing polymorphic shapes land here;
			// their equality was checked before recursing.
			dst[key] = sv
			continue
		}

		switch {
		case prop.IsScalar() && prop.IsObject():
			if err := p.mergeObjectValue(prop, dv, sv); err != nil {
				return err
			}

		case prop.IsScalar():
			if prop.IsID() {
				if !record.Equal(dv, sv) {
					return usageErr(ErrCodeIncompatibleMerge,
						"id property %q differs between merged records", key)
				}
				continue
			}
			dst[key] = sv

		case prop.IsArray() && prop.IsObject():
			dl, okD := dv.(*record.List)
			sl, okS := sv.(*record.List)
			if !okD || !okS {
				return usageErr(ErrCodeIncompatibleMerge,
					"property %q is not an array in both records", key)
			}
			if len(dl.Elems) != len(sl.Elems) {
				return usageErr(ErrCodeIncompatibleMerge,
					"array %q has %d and %d elements", key, len(dl.Elems), len(sl.Elems))
			}
			for i := range dl.Elems {
				if err := p.mergeElement(prop, key, dl.Elems[i], sl.Elems[i]); err != nil {
					return err
				}
			}

		case prop.IsMap() && prop.IsObject():
			dm, okD := dv.(record.Map)
			sm, okS := sv.(record.Map)
			if !okD || !okS {
				return usageErr(ErrCodeIncompatibleMerge,
					"property %q is not a map in both records", key)
			}
			if len(dm) != len(sm) {
				return usageErr(ErrCodeIncompatibleMerge, "map %q key sets differ", key)
			}
			for _, mk := range record.Object(sm).SortedKeys() {
				dvv, ok := dm[mk]
				if !ok {
					return usageErr(ErrCodeIncompatibleMerge, "map %q key sets differ", key)
				}
				if err := p.mergeElement(prop, key, dvv, sm[mk]); err != nil {
					return err
				}
			}

		default:
			// Scalar and reference collections merge as leaves.
			dst[key] = sv
		}
	}
	return nil
}

// mergeElement merges one collection element pair. Null slot alignment must
// match between the two sides.
func (p *Parser) mergeElement(prop *schema.PropertyDesc, key string, dv, sv record.Value) error {
	_, dNull := dv.(record.Null)
	_, sNull := sv.(record.Null)
	if dNull != sNull {
		return usageErr(ErrCodeIncompatibleMerge,
			"collection %q has mismatched null slots", key)
	}
	if dNull {
		return nil
	}
	return p.mergeObjectValue(prop, dv, sv)
}

// mergeObjectValue merges one nested object value pair, dispatching through
// the subtype table for polymorphic shapes.
func (p *Parser) mergeObjectValue(prop *schema.PropertyDesc, dv, sv record.Value) error {
	do, okD := dv.(record.Object)
	so, okS := sv.(record.Object)
	if !okD || !okS {
		return usageErr(ErrCodeIncompatibleMerge,
			"property %q is not an object in both records", prop.Name())
	}

	if !prop.IsPolymorph() {
		return p.mergeObject(prop.Nested(), do, so)
	}

	tp := prop.TypePropertyName()
	dt, st := do[tp], so[tp]
	if !record.Equal(dt, st) {
		return usageErr(ErrCodeIncompatibleMerge,
			"polymorphic property %q has different types in merged records", prop.Name())
	}
	name, ok := dt.(record.String)
	if !ok {
		return usageErr(ErrCodeIncompatibleMerge,
			"polymorphic property %q carries no type discriminator", prop.Name())
	}
	sub, ok := prop.Subtype(string(name))
	if !ok {
		return usageErr(ErrCodeIncompatibleMerge,
			"polymorphic property %q has unknown subtype %q", prop.Name(), string(name))
	}
	return p.mergeObject(sub, do, so)
}
