// Package cas is a content-addressed store for serialized objects. The
// pipeline keeps compiled chunks in it so a source file is compiled once per
// process no matter how often it is run.
package cas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/dgryski/go-farm"
)

type CAS interface {
	Put(item Hashable) (Hash, error)
	Has(hash Hash) bool
	getValue(hash Hash) (bool, []byte, error)
}

type Serde interface {
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
}

type Hashable interface {
	Serde
}

type Hash uint64

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

var ErrNotFound = errors.New("hash not found in CAS")

// HashBytes is the address a blob of data is stored under.
func HashBytes(data []byte) Hash {
	return Hash(farm.Fingerprint64(data))
}

func encode(item Hashable) ([]byte, Hash, error) {
	var buf bytes.Buffer
	if err := item.Serialize(&buf); err != nil {
		return nil, 0, err
	}
	data := buf.Bytes()
	return data, HashBytes(data), nil
}

// Retrieve decodes the object stored under hash. T must be a pointer type
// whose zero value can be deserialized into.
func Retrieve[T Hashable](c CAS, hash Hash) (T, error) {
	var t T
	has, data, err := c.getValue(hash)
	if err != nil {
		return t, err
	}
	if !has {
		return t, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	typ := reflect.TypeOf(t)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return t, fmt.Errorf("cas: cannot retrieve into %v", typ)
	}
	instance, ok := reflect.New(typ.Elem()).Interface().(T)
	if !ok {
		return t, fmt.Errorf("cas: %v does not implement Hashable", typ)
	}
	if err := instance.Deserialize(bytes.NewReader(data)); err != nil {
		return t, fmt.Errorf("deserializing %s: %w", hash, err)
	}
	return instance, nil
}
