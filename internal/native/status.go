package native

import "fmt"

// Status is the return code of every native entry point. Values match
// dnnl_status_t so the cgo binding can pass them through unchanged.
type Status int32

const (
	Success          Status = 0
	OutOfMemory      Status = 1
	InvalidArguments Status = 2
	Unimplemented    Status = 3
	LastImplReached  Status = 4
	RuntimeError     Status = 5
	NotRequired      Status = 6
	InvalidGraph     Status = 7
	InvalidGraphOp   Status = 8
	InvalidShape     Status = 9
	InvalidDataType  Status = 10
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case OutOfMemory:
		return "out_of_memory"
	case InvalidArguments:
		return "invalid_arguments"
	case Unimplemented:
		return "unimplemented"
	case LastImplReached:
		return "last_impl_reached"
	case RuntimeError:
		return "runtime_error"
	case NotRequired:
		return "not_required"
	case InvalidGraph:
		return "invalid_graph"
	case InvalidGraphOp:
		return "invalid_graph_op"
	case InvalidShape:
		return "invalid_shape"
	case InvalidDataType:
		return "invalid_data_type"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}
