package api

import (
	"github.com/ktstephano/pscript/ast"
	"github.com/ktstephano/pscript/compiler"
	"github.com/ktstephano/pscript/vm"
)

// SizeOf computes the flattened byte size of an ast.Type, the shape every
// GetArg/PushStack accessor and Container reflection needs to know before
// it can read or write stack bytes. A Compiler already builds one of these
// for its own type checking; hosts reuse that instead of duplicating the
// size table here.
type SizeOf func(ast.Type) (int, error)

// Container is the host-side reflection handle for a declared container
// (struct) type: given a *compiler.ContainerDef and the size function the
// program was compiled with, it can compute where any member lives inside
// an instance's flattened byte layout.
//
// original_source/pgs/pgs/src/api/container.rs's ContainerInstance::get_member
// always returned an empty Vec - unimplemented in the reference it was
// distilled from. Since compiler.ContainerDef.OffsetOf already has every
// piece of information get_member would need, GetMember below is a real
// implementation rather than a second copy of the stub.
type Container struct {
	def    *compiler.ContainerDef
	sizeOf SizeOf
}

// NewContainer wraps a declared container definition for host-side member
// access. sizeOf should be the same function the owning Compiler used to
// size its own types, so offsets agree with what the compiled code expects.
func NewContainer(def *compiler.ContainerDef, sizeOf SizeOf) *Container {
	return &Container{def: def, sizeOf: sizeOf}
}

// Size returns the instance's total flattened byte size.
func (c *Container) Size() (int, error) {
	return c.def.Size(c.sizeOf)
}

// GetMember reads member's bytes out of an instance living at base bytes
// relative to the VM's current stack pointer (the same coordinate system
// Adapter.ArgBase returns for arguments).
func (c *Container) GetMember(v *vm.VM, base int64, member string) ([]byte, error) {
	offset, err := c.def.OffsetOf(member, c.sizeOf)
	if err != nil {
		return nil, err
	}
	size, err := c.memberSize(member)
	if err != nil {
		return nil, err
	}
	return v.GetStack(base+int64(offset), size)
}

func (c *Container) memberSize(member string) (int, error) {
	for _, m := range c.def.Members {
		if m.Name == member {
			return c.sizeOf(m.Type)
		}
	}
	return 0, ErrUnknownMember
}
