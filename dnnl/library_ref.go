//go:build !dnnl

package dnnl

import (
	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/native/ref"
)

func defaultLibrary() native.Library { return ref.New() }
