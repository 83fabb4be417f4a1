package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

const (
	AccumulationStrict  = native.AccumulationStrict
	AccumulationRelaxed = native.AccumulationRelaxed
	AccumulationAny     = native.AccumulationAny
	AccumulationS32     = native.AccumulationS32
	AccumulationF32     = native.AccumulationF32
	AccumulationF16     = native.AccumulationF16
)

// PrimitiveAttributes are optional tunables for one operation. A nil
// *PrimitiveAttributes means library defaults.
type PrimitiveAttributes struct {
	ref *shared[native.Attr]
}

func NewPrimitiveAttributes() (*PrimitiveAttributes, error) {
	h, st := lib.AttrCreate()
	if err := check("primitive_attr_create", st); err != nil {
		return nil, err
	}
	a := &PrimitiveAttributes{ref: newShared("primitive_attr", h, lib.AttrDestroy)}
	guard(a, "primitive_attr", (*PrimitiveAttributes).Close)
	return a, nil
}

func (a *PrimitiveAttributes) AccumulationMode() (AccumulationMode, error) {
	h, err := a.ref.handle("primitive_attr_get_accumulation_mode")
	if err != nil {
		return AccumulationStrict, err
	}
	m, st := lib.AttrGetAccumulationMode(h)
	return m, check("primitive_attr_get_accumulation_mode", st)
}

func (a *PrimitiveAttributes) SetAccumulationMode(m AccumulationMode) error {
	h, err := a.ref.handle("primitive_attr_set_accumulation_mode")
	if err != nil {
		return err
	}
	return check("primitive_attr_set_accumulation_mode", lib.AttrSetAccumulationMode(h, m))
}

func (a *PrimitiveAttributes) Deterministic() (bool, error) {
	h, err := a.ref.handle("primitive_attr_get_deterministic")
	if err != nil {
		return false, err
	}
	v, st := lib.AttrGetDeterministic(h)
	return v, check("primitive_attr_get_deterministic", st)
}

func (a *PrimitiveAttributes) SetDeterministic(v bool) error {
	h, err := a.ref.handle("primitive_attr_set_deterministic")
	if err != nil {
		return err
	}
	return check("primitive_attr_set_deterministic", lib.AttrSetDeterministic(h, v))
}

func (a *PrimitiveAttributes) Close() {
	unguard(a)
	a.ref.close()
}

// retain returns the null handle for nil attributes.
func (a *PrimitiveAttributes) retain(op string) (native.Attr, error) {
	if a == nil {
		return 0, nil
	}
	h, err := a.ref.handle(op)
	if err != nil {
		return 0, err
	}
	a.ref.acquire()
	return h, nil
}

func (a *PrimitiveAttributes) drop() {
	if a != nil {
		a.ref.release()
	}
}
