package api

import (
	"encoding/binary"
	"math"

	"github.com/ktstephano/pscript/vm"
)

// Adapter gives a foreign function's Go implementation typed access to its
// arguments and a way to push its result, without it needing to know the
// byte-offset arithmetic the calling convention uses. Grounded on
// original_source/pgs/pgs/src/api/adapter.rs's Adapter, with its generic
// serde-based get_arg<T> split into one typed accessor per value kind -
// nothing in this module's dependency stack carries a serialization
// library, and the VM's fixed-width encoding is better served directly.
type Adapter struct {
	vm      *vm.VM
	offsets []int64
}

// NewAdapter builds an Adapter over v for a function whose arguments have
// the given sizes, in declaration order. Mirrors adapter.rs's
// with_fn_signature: walk the sizes in reverse, accumulating each
// argument's offset backward from the stack pointer, since the last
// argument pushed sits closest to SP.
func NewAdapter(v *vm.VM, argSizes []int) *Adapter {
	offsets := make([]int64, len(argSizes))
	var pos int64
	for i := len(argSizes) - 1; i >= 0; i-- {
		pos -= int64(argSizes[i])
		offsets[i] = pos
	}
	return &Adapter{vm: v, offsets: offsets}
}

func (a *Adapter) offset(index int) (int64, error) {
	if index < 0 || index >= len(a.offsets) {
		return 0, ErrUnknownArg
	}
	return a.offsets[index], nil
}

// GetArgInt reads the index'th argument as a signed 64-bit integer.
func (a *Adapter) GetArgInt(index int) (int64, error) {
	off, err := a.offset(index)
	if err != nil {
		return 0, err
	}
	b, err := a.vm.GetStack(off, vm.SizeInt)
	if err != nil {
		return 0, ErrArgReadFault
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// GetArgFloat reads the index'th argument as a 32-bit float.
func (a *Adapter) GetArgFloat(index int) (float32, error) {
	off, err := a.offset(index)
	if err != nil {
		return 0, err
	}
	b, err := a.vm.GetStack(off, vm.SizeFloat)
	if err != nil {
		return 0, ErrArgReadFault
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// GetArgBool reads the index'th argument as a boolean.
func (a *Adapter) GetArgBool(index int) (bool, error) {
	off, err := a.offset(index)
	if err != nil {
		return false, err
	}
	b, err := a.vm.GetStack(off, vm.SizeBool)
	if err != nil {
		return false, ErrArgReadFault
	}
	return b[0] != 0, nil
}

// GetArgString reads the index'th argument as a string: its 16 bytes
// decode to a (length int64, packed address uint64) pair, which
// vm.VM.ResolveString turns into the actual bytes wherever they live.
func (a *Adapter) GetArgString(index int) (string, error) {
	off, err := a.offset(index)
	if err != nil {
		return "", err
	}
	b, err := a.vm.GetStack(off, vm.SizeString)
	if err != nil {
		return "", ErrArgReadFault
	}
	length := int64(binary.LittleEndian.Uint64(b[:8]))
	packed := binary.LittleEndian.Uint64(b[8:])
	s, err := a.vm.ResolveString(int(length), packed)
	if err != nil {
		return "", ErrArgReadFault
	}
	return s, nil
}

// ArgBase returns the stack offset an argument of container (Other) type
// begins at, for use with Container.GetMember.
func (a *Adapter) ArgBase(index int) (int64, error) {
	return a.offset(index)
}

// PushStackInt pushes the function's integer return value.
func (a *Adapter) PushStackInt(v int64) { a.vm.PushInt(v) }

// PushStackFloat pushes the function's float return value.
func (a *Adapter) PushStackFloat(v float32) { a.vm.PushFloat(v) }

// PushStackBool pushes the function's bool return value.
func (a *Adapter) PushStackBool(v bool) { a.vm.PushBool(v) }

// PushStackString pushes the function's string return value, heap-backed
// since a foreign function's output is produced at run time.
func (a *Adapter) PushStackString(v string) { a.vm.PushString(v) }
