package heap

import "fmt"

// TypeTag identifies the native type stored behind a handle. Natives check it
// before downcasting.
type TypeTag string

const (
	TagFunction TypeTag = "function"
	TagBytes    TypeTag = "bytes"
)

// Downcast fetches the object behind handle, checking both the runtime tag
// and the Go type. A mismatch is an internal consistency failure rather than
// a user error.
func Downcast[T any](h *Heap, handle Handle, tag TypeTag) (T, error) {
	var t T
	got, value, err := h.Get(handle)
	if err != nil {
		return t, err
	}
	if got != tag {
		return t, fmt.Errorf("%w: expected %q, got %q", ErrTypeTag, tag, got)
	}
	result, ok := value.(T)
	if !ok {
		return t, fmt.Errorf("%w: %q holds %T, not %T", ErrTypeTag, tag, value, t)
	}
	return result, nil
}

// Bytes is a heap resident byte buffer.
type Bytes []byte

func (b Bytes) Size() int {
	return len(b)
}
