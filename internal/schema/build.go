package schema

// idRule governs id property validation for an object shape.
type idRule int

const (
	// idRequired applies to top-level record types and array element shapes:
	// exactly one id property of string or number type.
	idRequired idRule = iota
	// idForbidden applies to scalar object and map element shapes.
	idForbidden
)

// Build compiles and validates a library definition into the read-only
// schema view. All definition invariants are checked here; a library that
// built successfully is safe for any number of parsers.
func Build(def *LibraryDefinition) (*Library, error) {
	if def == nil || len(def.RecordTypes) == 0 {
		return nil, defErr(ErrCodeUnknownType, "", "empty record-types library definition")
	}

	lib := &Library{types: make(map[string]*RecordTypeDesc, len(def.RecordTypes))}

	for _, name := range sortedKeys(def.RecordTypes) {
		desc, err := buildObjectShape(name, def.RecordTypes[name], idRequired)
		if err != nil {
			return nil, err
		}
		lib.types[name] = desc
	}

	// Second pass: reference targets and key declarations that depend on
	// other record types can only be resolved once every type is built.
	for _, name := range lib.RecordTypeNames() {
		if err := lib.resolveRefs(lib.types[name], name); err != nil {
			return nil, err
		}
	}

	return lib, nil
}

// buildObjectShape compiles a record type, nested object or subtype shape.
func buildObjectShape(path string, def *RecordTypeDef, rule idRule) (*RecordTypeDesc, error) {
	if def == nil || len(def.Properties) == 0 {
		return nil, defErr(ErrCodeBadValueType, path, "object shape has no properties")
	}

	desc := &RecordTypeDesc{
		name:  path,
		props: make(map[string]*PropertyDesc, len(def.Properties)),
	}

	for _, propName := range sortedKeys(def.Properties) {
		p, err := buildProperty(propName, def.Properties[propName], path+"."+propName)
		if err != nil {
			return nil, err
		}
		if p.id {
			if desc.idProp != nil {
				return nil, defErr(ErrCodeBadID, path, "more than one id property")
			}
			desc.idProp = p
		}
		desc.props[propName] = p
	}

	switch rule {
	case idRequired:
		if desc.idProp == nil {
			return nil, defErr(ErrCodeBadID, path, "missing id property")
		}
	case idForbidden:
		if desc.idProp != nil {
			return nil, defErr(ErrCodeBadID, path, "id property not allowed in scalar or map object")
		}
	}

	return desc, nil
}

func buildProperty(name string, def *PropertyDef, path string) (*PropertyDesc, error) {
	if def == nil {
		return nil, defErr(ErrCodeBadValueType, path, "missing property definition")
	}

	p := &PropertyDesc{
		name:         name,
		valueType:    ValueType(def.ValueType),
		id:           def.ID,
		required:     def.Required,
		refTargets:   def.RefTargets,
		keyRefTarget: def.KeyRefTarget,
		keyProperty:  def.KeyProperty,
	}

	switch def.Card {
	case "":
		p.card = CardScalar
	case "array":
		p.card = CardArray
	case "map":
		p.card = CardMap
	default:
		return nil, defErr(ErrCodeBadValueType, path, "unknown cardinality %q", def.Card)
	}

	switch p.valueType {
	case TypeString, TypeNumber, TypeBoolean, TypeDatetime:
		if def.Subtypes != nil || def.Properties != nil {
			return nil, defErr(ErrCodeBadValueType, path, "scalar value type %q cannot nest properties", p.valueType)
		}
		if len(def.RefTargets) != 0 {
			return nil, defErr(ErrCodeBadValueType, path, "scalar value type %q cannot declare reference targets", p.valueType)
		}

	case TypeObject:
		if err := buildObjectProperty(p, def, path); err != nil {
			return nil, err
		}

	case TypeRef:
		if len(def.RefTargets) == 0 {
			return nil, defErr(ErrCodeUnknownType, path, "reference property declares no targets")
		}
		if def.Subtypes != nil || def.Properties != nil {
			return nil, defErr(ErrCodeBadValueType, path, "reference property cannot nest properties")
		}

	default:
		return nil, defErr(ErrCodeBadValueType, path, "unknown value type %q", def.ValueType)
	}

	if p.id {
		if p.card != CardScalar || (p.valueType != TypeString && p.valueType != TypeNumber) {
			return nil, defErr(ErrCodeBadID, path, "id property must be a scalar string or number")
		}
	}

	if p.card == CardMap {
		if err := resolveLocalKey(p, def, path); err != nil {
			return nil, err
		}
	} else if def.KeyValueType != "" || def.KeyProperty != "" || def.KeyRefTarget != "" {
		return nil, defErr(ErrCodeBadKey, path, "key declaration on non-map property")
	}

	return p, nil
}

func buildObjectProperty(p *PropertyDesc, def *PropertyDef, path string) error {
	if def.Subtypes != nil && def.Properties != nil {
		return defErr(ErrCodeBadSubtypes, path, "object property declares both properties and subtypes")
	}

	elemRule := idForbidden
	if p.card == CardArray {
		elemRule = idRequired
	}

	if def.Subtypes != nil {
		p.typeProperty = def.TypeProperty
		if p.typeProperty == "" {
			p.typeProperty = DefaultTypeProperty
		}
		p.subtypes = make(map[string]*RecordTypeDesc, len(def.Subtypes))
		for _, subName := range sortedKeys(def.Subtypes) {
			sub, err := buildObjectShape(path+"."+subName, def.Subtypes[subName], elemRule)
			if err != nil {
				return err
			}
			if _, clash := sub.props[p.typeProperty]; clash {
				return defErr(ErrCodeBadSubtypes, path+"."+subName,
					"subtype property %q collides with the type discriminator", p.typeProperty)
			}
			p.subtypes[subName] = sub
		}
		// Array anchors read the element id; the subtypes must agree on it.
		if p.card == CardArray {
			var err error
			p.anchorIDProp, err = agreedSubtypeID(p, path)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if def.Properties == nil {
		return defErr(ErrCodeBadValueType, path, "object property has no shape")
	}
	nested, err := buildObjectShape(path, &RecordTypeDef{Properties: def.Properties}, elemRule)
	if err != nil {
		return err
	}
	p.nested = nested
	if p.card == CardArray {
		p.anchorIDProp = nested.IDProperty()
	}
	return nil
}

// agreedSubtypeID verifies all subtypes of a polymorphic array share the
// same id property name and value type, and returns that descriptor.
func agreedSubtypeID(p *PropertyDesc, path string) (*PropertyDesc, error) {
	var agreed *PropertyDesc
	for _, subName := range p.SubtypeNames() {
		id := p.subtypes[subName].IDProperty()
		if agreed == nil {
			agreed = id
			continue
		}
		if id.Name() != agreed.Name() || id.ScalarValueType() != agreed.ScalarValueType() {
			return nil, defErr(ErrCodeBadSubtypes, path,
				"subtypes disagree on the array element id property")
		}
	}
	return agreed, nil
}

// resolveLocalKey resolves map key declarations that do not depend on other
// record types. Ref-target existence and keys derived from referred records
// are finished by resolveRefs.
func resolveLocalKey(p *PropertyDesc, def *PropertyDef, path string) error {
	if def.KeyValueType != "" && def.KeyProperty != "" {
		return defErr(ErrCodeBadKey, path, "map declares both keyValueType and keyProperty")
	}

	if def.KeyValueType != "" {
		switch ValueType(def.KeyValueType) {
		case TypeString, TypeNumber, TypeBoolean, TypeDatetime:
			p.keyValueType = ValueType(def.KeyValueType)
			if def.KeyRefTarget != "" {
				return defErr(ErrCodeBadKey, path, "keyRefTarget on a non-ref key type")
			}
		case TypeRef:
			if def.KeyRefTarget == "" {
				return defErr(ErrCodeBadKey, path, "ref key type requires keyRefTarget")
			}
			p.keyValueType = TypeRef
		default:
			// Object-typed keys are disallowed by construction.
			return defErr(ErrCodeBadKey, path, "unknown key value type %q", def.KeyValueType)
		}
		return nil
	}

	if def.KeyProperty == "" {
		return defErr(ErrCodeBadKey, path, "map declares neither keyValueType nor keyProperty")
	}

	// Key derived from a property of the element object. For ref-valued
	// maps the referred record type is consulted in the second pass.
	if p.valueType == TypeRef {
		return nil
	}

	keyVT, err := keyPropertyType(p, def.KeyProperty, path)
	if err != nil {
		return err
	}
	p.keyValueType = keyVT
	return nil
}

// keyPropertyType resolves the key value type from a named property of the
// element object shape (or the agreed property across subtypes).
func keyPropertyType(p *PropertyDesc, keyProp, path string) (ValueType, error) {
	lookup := func(shape *RecordTypeDesc) (ValueType, error) {
		kp, ok := shape.Property(keyProp)
		if !ok {
			return "", defErr(ErrCodeBadKey, path, "key property %q not found in element shape", keyProp)
		}
		if !kp.IsScalar() {
			return "", defErr(ErrCodeBadKey, path, "key property %q is not scalar", keyProp)
		}
		vt, ok := scalarValueType(string(kp.ScalarValueType()))
		if !ok {
			return "", defErr(ErrCodeBadKey, path, "key property %q has non-scalar value type", keyProp)
		}
		return vt, nil
	}

	if p.nested != nil {
		return lookup(p.nested)
	}

	var agreed ValueType
	for _, subName := range p.SubtypeNames() {
		vt, err := lookup(p.subtypes[subName])
		if err != nil {
			return "", err
		}
		if agreed == "" {
			agreed = vt
		} else if vt != agreed {
			return "", defErr(ErrCodeBadKey, path, "subtypes disagree on key property %q", keyProp)
		}
	}
	if agreed == "" {
		return "", defErr(ErrCodeBadKey, path, "key property %q resolves to no type", keyProp)
	}
	return agreed, nil
}

// resolveRefs finishes validation that depends on the full type table:
// reference target existence and map keys derived from referred records.
func (l *Library) resolveRefs(shape *RecordTypeDesc, path string) error {
	for _, propName := range shape.PropertyNames() {
		p := shape.props[propName]
		propPath := path + "." + propName

		if p.IsRef() {
			for _, target := range p.refTargets {
				if _, ok := l.types[target]; !ok {
					return defErr(ErrCodeUnknownType, propPath, "unknown reference target %q", target)
				}
			}
			if p.IsMap() && p.keyProperty != "" {
				if err := l.resolveRefKeyProperty(p, propPath); err != nil {
					return err
				}
			}
		}

		if p.keyValueType == TypeRef {
			if _, ok := l.types[p.keyRefTarget]; !ok {
				return defErr(ErrCodeUnknownType, propPath, "unknown key reference target %q", p.keyRefTarget)
			}
		}

		if p.nested != nil {
			if err := l.resolveRefs(p.nested, propPath); err != nil {
				return err
			}
		}
		for _, subName := range p.SubtypeNames() {
			if err := l.resolveRefs(p.subtypes[subName], propPath+"."+subName); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveRefKeyProperty resolves the key type of a ref-valued map keyed by
// a property of the referred record. All targets must agree.
func (l *Library) resolveRefKeyProperty(p *PropertyDesc, path string) error {
	var agreed ValueType
	for _, target := range p.refTargets {
		desc := l.types[target]
		kp, ok := desc.Property(p.keyProperty)
		if !ok {
			return defErr(ErrCodeBadKey, path, "key property %q not found in %s", p.keyProperty, target)
		}
		if !kp.IsScalar() {
			return defErr(ErrCodeBadKey, path, "key property %q in %s is not scalar", p.keyProperty, target)
		}
		vt, ok := scalarValueType(string(kp.ScalarValueType()))
		if !ok {
			return defErr(ErrCodeBadKey, path, "key property %q in %s has non-scalar value type", p.keyProperty, target)
		}
		if agreed == "" {
			agreed = vt
		} else if vt != agreed {
			return defErr(ErrCodeBadKey, path, "reference targets disagree on key property %q", p.keyProperty)
		}
	}
	p.keyValueType = agreed
	return nil
}
