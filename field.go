package netboxapi

import (
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Choice is the Netbox convention for enumerated fields: the API returns
// {"value": ..., "label": ...} on read and expects the bare value on write.
type Choice struct {
	Value any
	Label string
}

// fieldState tags how a stored field value is to be interpreted. A field
// starts as a scalar, a choice descriptor or a foreign-key descriptor,
// depending on its wire shape; a foreign-key descriptor transitions to
// fieldResolved on first access and stays there until the row is replaced.
type fieldState uint8

const (
	fieldScalar fieldState = iota
	fieldChoice
	fieldForeignKey
	fieldResolved
)

// field is one entry of a mapper's row. raw always keeps the value as it
// came off the wire (or as the caller set it); ref holds the resolved
// child mapper once state is fieldResolved.
type field struct {
	state fieldState
	raw   any
	ref   *Mapper
}

// newField classifies a decoded JSON value. A mapping with a "url" key is
// a foreign-key descriptor; a mapping of exactly {value, label} is a
// choice descriptor; everything else, nested mappings included, is kept
// as a plain scalar.
func newField(v any) *field {
	if m, ok := v.(map[string]any); ok {
		if _, ok := m["url"].(string); ok {
			return &field{state: fieldForeignKey, raw: v}
		}
		if len(m) == 2 {
			_, hasValue := m["value"]
			_, hasLabel := m["label"]
			if hasValue && hasLabel {
				return &field{state: fieldChoice, raw: v}
			}
		}
	}
	if ref, ok := v.(*Mapper); ok {
		// A mapper assigned by the caller is already resolved.
		return &field{state: fieldResolved, ref: ref}
	}
	return &field{state: fieldScalar, raw: v}
}

// choice converts the stored descriptor into a Choice. Only valid when
// state is fieldChoice.
func (f *field) choice() Choice {
	desc := f.raw.(map[string]any)
	label, _ := desc["label"].(string)
	return Choice{Value: desc["value"], Label: label}
}

// wireValue serializes the field for an outgoing POST or PUT body:
// mappers and foreign-key descriptors collapse to their bare id, choices
// to their bare value, everything else passes through unchanged (a nil
// foreign key stays null).
func (f *field) wireValue() (any, error) {
	switch f.state {
	case fieldResolved:
		id, ok := f.ref.rawID()
		if !ok {
			return nil, errors.Wrapf(ErrMissingID,
				"foreign key %s/%s cannot be serialized", f.ref.app, f.ref.model)
		}
		return id, nil
	case fieldForeignKey:
		desc := f.raw.(map[string]any)
		id, ok := desc["id"]
		if !ok {
			return nil, errors.New("foreign-key descriptor has no id")
		}
		return id, nil
	case fieldChoice:
		return f.raw.(map[string]any)["value"], nil
	default:
		return f.raw, nil
	}
}

// comparisonValue is the value used for mapper equality. Resolution must
// not change the outcome, so a resolved foreign key compares by its
// original descriptor; a caller-assigned mapper compares by the fields of
// that mapper.
func (f *field) comparisonValue() any {
	if f.state == fieldResolved && f.raw == nil && f.ref != nil {
		return f.ref.comparableFields()
	}
	return f.raw
}

// serializePostValue prepares a caller-supplied Post field: a mapper
// becomes its bare id (which it must have), anything else passes through
// unchanged, including raw integer foreign keys.
func serializePostValue(name string, v any) (any, error) {
	ref, ok := v.(*Mapper)
	if !ok {
		return v, nil
	}
	id, idOK := ref.rawID()
	if !idOK {
		return nil, errors.Wrapf(ErrMissingID, "field %q", name)
	}
	return id, nil
}

// asNumber coerces the id representations that can appear in payloads and
// caller arguments into a json.Number.
func asNumber(v any) (json.Number, bool) {
	switch n := v.(type) {
	case json.Number:
		return n, true
	case string:
		// Ids occasionally arrive as strings; accept only integral ones,
		// otherwise a junk string would bind the mapper to a bogus item URL.
		if _, err := strconv.ParseInt(n, 10, 64); err != nil {
			return "", false
		}
		return json.Number(n), true
	case int:
		return json.Number(strconv.Itoa(n)), true
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), true
	case float64:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	default:
		return "", false
	}
}
