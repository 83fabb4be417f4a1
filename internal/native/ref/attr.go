package ref

import "github.com/23skdu/longbow-dnnl/internal/native"

type attr struct {
	accumulation  native.AccumulationMode
	deterministic bool
}

func (l *Library) AttrCreate() (native.Attr, native.Status) {
	return native.Attr(l.put(&attr{accumulation: native.AccumulationStrict})), native.Success
}

func (l *Library) AttrGetAccumulationMode(h native.Attr) (native.AccumulationMode, native.Status) {
	a, ok := lookup[*attr](l, uintptr(h))
	if !ok {
		return 0, native.InvalidArguments
	}
	return a.accumulation, native.Success
}

func (l *Library) AttrSetAccumulationMode(h native.Attr, mode native.AccumulationMode) native.Status {
	a, ok := lookup[*attr](l, uintptr(h))
	if !ok || mode < native.AccumulationStrict || mode > native.AccumulationF16 {
		return native.InvalidArguments
	}
	a.accumulation = mode
	return native.Success
}

func (l *Library) AttrGetDeterministic(h native.Attr) (bool, native.Status) {
	a, ok := lookup[*attr](l, uintptr(h))
	if !ok {
		return false, native.InvalidArguments
	}
	return a.deterministic, native.Success
}

func (l *Library) AttrSetDeterministic(h native.Attr, v bool) native.Status {
	a, ok := lookup[*attr](l, uintptr(h))
	if !ok {
		return native.InvalidArguments
	}
	a.deterministic = v
	return native.Success
}

func (l *Library) AttrDestroy(h native.Attr) native.Status {
	return destroy[*attr](l, uintptr(h), nil)
}

// attrOf resolves an optional attribute handle; zero means defaults.
func (l *Library) attrOf(h native.Attr) (attr, bool) {
	if h == 0 {
		return attr{accumulation: native.AccumulationStrict}, true
	}
	a, ok := lookup[*attr](l, uintptr(h))
	if !ok {
		return attr{}, false
	}
	return *a, true
}
