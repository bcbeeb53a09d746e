package xsdrt

import "fmt"

// Builder receives the pieces of a complex value as the matcher
// recognizes them. Generated struct types implement it; Value is the
// generic implementation.
type Builder interface {
	// SetAttr stores an attribute value. Slot AnyAttrSlot receives
	// wildcard attributes as Attr values.
	SetAttr(slot int, value any) error
	// SetText stores simple content or accumulated mixed text.
	SetText(value any) error
	// Add appends a child value to the field at slot.
	Add(slot int, value any) error
	// Nested returns a builder for the model group at slot. The value is
	// passed back through Add once the group has matched.
	Nested(slot int) Builder
}

// scoped is implemented by builders that keep element identity and
// namespace declarations.
type scoped interface {
	setElement(name QName, decls map[string]string)
}

// NilSetter is implemented by builders of nillable elements. SetNil is
// called when the element carries xsi:nil="true".
type NilSetter interface {
	SetNil()
}

// Value is a schema-agnostic complex value keyed by builder slot.
type Value struct {
	Type    string
	Element QName
	Attrs   map[int]any
	Any     []Attr
	Text    any
	Slots   map[int][]any
	NS      map[string]string
	// Nil is set when the element carried xsi:nil="true".
	Nil bool
}

var (
	_ Builder   = (*Value)(nil)
	_ NilSetter = (*Value)(nil)
)

func (v *Value) SetAttr(slot int, value any) error {
	if slot == AnyAttrSlot {
		a, ok := value.(Attr)
		if !ok {
			return fmt.Errorf("wildcard attribute: unexpected value %T", value)
		}
		v.Any = append(v.Any, a)
		return nil
	}
	if v.Attrs == nil {
		v.Attrs = make(map[int]any)
	}
	v.Attrs[slot] = value
	return nil
}

func (v *Value) SetText(value any) error {
	v.Text = value
	return nil
}

func (v *Value) Add(slot int, value any) error {
	if v.Slots == nil {
		v.Slots = make(map[int][]any)
	}
	v.Slots[slot] = append(v.Slots[slot], value)
	return nil
}

func (v *Value) Nested(int) Builder {
	return &Value{}
}

func (v *Value) setElement(name QName, decls map[string]string) {
	v.Element = name
	v.NS = decls
}

func (v *Value) SetNil() {
	v.Nil = true
}

// Get returns the values stored at slot.
func (v *Value) Get(slot int) []any {
	return v.Slots[slot]
}

// Attr returns the attribute stored at slot.
func (v *Value) Attr(slot int) (any, bool) {
	a, ok := v.Attrs[slot]
	return a, ok
}

// SlotError reports a value a generated builder cannot store at slot.
func SlotError(slot int, value any) error {
	return fmt.Errorf("slot %d: unexpected value of type %T", slot, value)
}
