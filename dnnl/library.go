package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// lib is the linked native library: the pure-Go reference implementation by
// default, oneDNN when built with -tags dnnl.
var lib native.Library = defaultLibrary()

// LibraryName reports which native library is linked.
func LibraryName() string { return lib.Name() }

// SetPrimitiveCacheCapacity bounds the number of compiled primitives the
// native library keeps. Zero disables the cache.
func SetPrimitiveCacheCapacity(n int) error {
	return check("set_primitive_cache_capacity", lib.SetPrimitiveCacheCapacity(n))
}

func PrimitiveCacheCapacity() (int, error) {
	n, st := lib.GetPrimitiveCacheCapacity()
	if err := check("get_primitive_cache_capacity", st); err != nil {
		return 0, err
	}
	return n, nil
}

// DataTypeSize returns the size in bytes of one element of dt, or 0 for an
// unknown type.
func DataTypeSize(dt DataType) int { return int(lib.DataTypeSize(dt)) }
