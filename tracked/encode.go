package tracked

import (
	"fmt"
	"io"
	"math"

	"github.com/valyala/quicktemplate"
)

// WriteJSON writes a raw value tree as JSON with mapping keys sorted, so
// equal trees always produce equal bytes. Views and states are rejected.
func WriteJSON(w io.Writer, v any) error {
	bb := quicktemplate.AcquireByteBuffer()
	defer quicktemplate.ReleaseByteBuffer(bb)

	qw := quicktemplate.AcquireWriter(bb)
	err := streamJSON(qw.N(), v)
	quicktemplate.ReleaseWriter(qw)
	if err != nil {
		return err
	}
	_, err = w.Write(bb.B)
	return err
}

func streamJSON(qw *quicktemplate.QWriter, v any) error {
	switch x := v.(type) {
	case nil:
		qw.S("null")
	case bool:
		if x {
			qw.S("true")
		} else {
			qw.S("false")
		}
	case string:
		qw.Q(x)
	case int:
		qw.D(x)
	case int32:
		qw.DL(int64(x))
	case int64:
		qw.DL(x)
	case uint:
		qw.DUL(uint64(x))
	case uint64:
		qw.DUL(x)
	case float32:
		return streamFloat(qw, float64(x))
	case float64:
		return streamFloat(qw, x)
	case map[string]any:
		qw.S("{")
		for i, name := range sortedNames(x) {
			if i > 0 {
				qw.S(",")
			}
			qw.Q(name)
			qw.S(":")
			if err := streamJSON(qw, x[name]); err != nil {
				return err
			}
		}
		qw.S("}")
	case []any:
		qw.S("[")
		for i, item := range x {
			if i > 0 {
				qw.S(",")
			}
			if err := streamJSON(qw, item); err != nil {
				return err
			}
		}
		qw.S("]")
	case *View:
		return newError(x.h.path, CodeToJSONValue)
	case *State:
		return newError(x.h.path, CodeToJSONState)
	default:
		if v == Empty {
			return newError(RootPath, CodeGetStateWhenPromised)
		}
		return fmt.Errorf("write json: unsupported value of type %T", v)
	}
	return nil
}

func streamFloat(qw *quicktemplate.QWriter, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("write json: unsupported float %v", f)
	}
	qw.F(f)
	return nil
}
