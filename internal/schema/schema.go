package schema

import (
	"slices"

	"github.com/roach88/rsparser/internal/record"
)

// ValueType identifies the value type of a property or map key.
type ValueType string

const (
	TypeString   ValueType = "string"
	TypeNumber   ValueType = "number"
	TypeBoolean  ValueType = "boolean"
	TypeDatetime ValueType = "datetime"
	TypeObject   ValueType = "object"
	TypeRef      ValueType = "ref"
)

// Cardinality identifies the container shape of a property.
type Cardinality int

const (
	// CardScalar is a single-valued property.
	CardScalar Cardinality = iota
	// CardArray is an ordered collection property.
	CardArray
	// CardMap is a string-keyed collection property.
	CardMap
)

// String implements fmt.Stringer for Cardinality.
func (c Cardinality) String() string {
	switch c {
	case CardArray:
		return "array"
	case CardMap:
		return "map"
	default:
		return "scalar"
	}
}

// DefaultTypeProperty is the discriminator property name written into
// polymorphic object values when the definition does not name one.
const DefaultTypeProperty = "type"

// LibraryDefinition is the raw, decodable form of a record-types library.
// It is decoded from CUE by the CLI loader and from YAML by the test harness.
type LibraryDefinition struct {
	RecordTypes map[string]*RecordTypeDef `json:"recordTypes" yaml:"recordTypes"`
}

// RecordTypeDef defines a record type or a polymorphic subtype.
type RecordTypeDef struct {
	Properties map[string]*PropertyDef `json:"properties" yaml:"properties"`
}

// PropertyDef defines a single property.
type PropertyDef struct {
	// ValueType is one of string, number, boolean, datetime, object, ref.
	ValueType string `json:"valueType" yaml:"valueType"`

	// Card is empty for scalars, or "array" / "map".
	Card string `json:"card,omitempty" yaml:"card,omitempty"`

	// ID marks the record type's id property.
	ID bool `json:"id,omitempty" yaml:"id,omitempty"`

	// Required marks a property that may not be null in the result set.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// RefTargets lists target record type names for ref properties.
	// More than one target makes the reference polymorphic.
	RefTargets []string `json:"refTargets,omitempty" yaml:"refTargets,omitempty"`

	// Properties defines the nested object shape for monomorphic objects.
	Properties map[string]*PropertyDef `json:"properties,omitempty" yaml:"properties,omitempty"`

	// Subtypes defines the subtype table for polymorphic objects.
	Subtypes map[string]*RecordTypeDef `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`

	// TypeProperty names the discriminator property for polymorphic objects.
	// Defaults to "type".
	TypeProperty string `json:"typeProperty,omitempty" yaml:"typeProperty,omitempty"`

	// KeyValueType declares the map key type literally.
	KeyValueType string `json:"keyValueType,omitempty" yaml:"keyValueType,omitempty"`

	// KeyRefTarget names the referred record type for ref-typed map keys.
	KeyRefTarget string `json:"keyRefTarget,omitempty" yaml:"keyRefTarget,omitempty"`

	// KeyProperty derives the map key from a property of the element object
	// or referred record.
	KeyProperty string `json:"keyProperty,omitempty" yaml:"keyProperty,omitempty"`
}

// Library is the compiled, read-only record-types library.
type Library struct {
	types map[string]*RecordTypeDesc
}

// RecordTypeDesc is the compiled descriptor of a record type, a nested
// object shape or a polymorphic subtype.
type RecordTypeDesc struct {
	name   string
	props  map[string]*PropertyDesc
	idProp *PropertyDesc
}

// PropertyDesc is the compiled descriptor of a single property.
type PropertyDesc struct {
	name         string
	card         Cardinality
	valueType    ValueType
	id           bool
	required     bool
	refTargets   []string
	nested       *RecordTypeDesc
	subtypes     map[string]*RecordTypeDesc
	typeProperty string
	keyValueType ValueType
	keyRefTarget string
	keyProperty  string
	anchorIDProp *PropertyDesc
}

// RecordTypeDesc returns the descriptor for a named record type.
func (l *Library) RecordTypeDesc(name string) (*RecordTypeDesc, bool) {
	d, ok := l.types[name]
	return d, ok
}

// RecordTypeNames returns the names of all record types in sorted order.
func (l *Library) RecordTypeNames() []string {
	names := make([]string, 0, len(l.types))
	for name := range l.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Name returns the record type name. For nested object shapes the name is
// the definition path, e.g. "Person.address".
func (d *RecordTypeDesc) Name() string { return d.name }

// Property returns the descriptor of a named property.
func (d *RecordTypeDesc) Property(name string) (*PropertyDesc, bool) {
	p, ok := d.props[name]
	return p, ok
}

// PropertyNames returns property names in sorted order.
func (d *RecordTypeDesc) PropertyNames() []string {
	names := make([]string, 0, len(d.props))
	for name := range d.props {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IDProperty returns the id property descriptor, or nil for object shapes
// that carry no id.
func (d *RecordTypeDesc) IDProperty() *PropertyDesc { return d.idProp }

// NewRecord creates an empty record object. All properties start absent.
func (d *RecordTypeDesc) NewRecord() record.Object { return record.Object{} }

// Name returns the property name.
func (p *PropertyDesc) Name() string { return p.name }

// IsScalar reports scalar cardinality.
func (p *PropertyDesc) IsScalar() bool { return p.card == CardScalar }

// IsArray reports array cardinality.
func (p *PropertyDesc) IsArray() bool { return p.card == CardArray }

// IsMap reports map cardinality.
func (p *PropertyDesc) IsMap() bool { return p.card == CardMap }

// IsRef reports a reference-valued property.
func (p *PropertyDesc) IsRef() bool { return p.valueType == TypeRef }

// IsObject reports a nested-object-valued property.
func (p *PropertyDesc) IsObject() bool { return p.valueType == TypeObject }

// IsPolymorph reports a polymorphic object (subtype table) or a
// polymorphic reference (two or more targets).
func (p *PropertyDesc) IsPolymorph() bool {
	if p.valueType == TypeObject {
		return p.subtypes != nil
	}
	if p.valueType == TypeRef {
		return len(p.refTargets) > 1
	}
	return false
}

// IsID reports the record type's id property.
func (p *PropertyDesc) IsID() bool { return p.id }

// Required reports whether the property may not be null in the result set.
func (p *PropertyDesc) Required() bool { return p.required }

// ScalarValueType returns the property value type.
func (p *PropertyDesc) ScalarValueType() ValueType { return p.valueType }

// RefTargets returns the target record type names of a reference property.
func (p *PropertyDesc) RefTargets() []string { return p.refTargets }

// RefTarget returns the single target of a monomorphic reference.
func (p *PropertyDesc) RefTarget() string {
	if len(p.refTargets) == 1 {
		return p.refTargets[0]
	}
	return ""
}

// Nested returns the nested object shape of a monomorphic object property.
func (p *PropertyDesc) Nested() *RecordTypeDesc { return p.nested }

// Subtype returns the shape of a named polymorphic subtype.
func (p *PropertyDesc) Subtype(name string) (*RecordTypeDesc, bool) {
	d, ok := p.subtypes[name]
	return d, ok
}

// SubtypeNames returns polymorphic subtype names in sorted order.
func (p *PropertyDesc) SubtypeNames() []string {
	names := make([]string, 0, len(p.subtypes))
	for name := range p.subtypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TypePropertyName returns the discriminator property name for polymorphic
// objects.
func (p *PropertyDesc) TypePropertyName() string { return p.typeProperty }

// KeyValueType returns the resolved map key value type.
func (p *PropertyDesc) KeyValueType() ValueType { return p.keyValueType }

// KeyRefTargetName returns the referred record type of ref-typed map keys.
func (p *PropertyDesc) KeyRefTargetName() string { return p.keyRefTarget }

// KeyPropertyName returns the element property the map key derives from,
// or "".
func (p *PropertyDesc) KeyPropertyName() string { return p.keyProperty }

// AnchorIDProperty returns the element id property used as the collection
// anchor for object arrays. For polymorphic arrays this is the id property
// the subtypes agree on.
func (p *PropertyDesc) AnchorIDProperty() *PropertyDesc { return p.anchorIDProp }

func scalarValueType(s string) (ValueType, bool) {
	switch ValueType(s) {
	case TypeString, TypeNumber, TypeBoolean, TypeDatetime:
		return ValueType(s), true
	}
	return "", false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
