package compiler

import (
	"github.com/ktstephano/pscript/ast"
)

// ContainerMemberDef is one field of a container (struct) declaration.
type ContainerMemberDef struct {
	Name string
	Type ast.Type
}

// ContainerFunctionDef records a member function attached to a container
// via an impl block - its UID, return type, and (name, type) parameters in
// declaration order, the first of which is "this" for instance methods.
type ContainerFunctionDef struct {
	UID    uint64
	Ret    ast.Type
	Params []ast.Param
}

// ContainerDef is a declared container (struct) type: an ordered list of
// members plus any functions attached to it through an impl block.
// Grounded on original_source/pgs/pgs/src/codegen/container.rs, adapted
// from its BTreeMap<usize, ...> ordering to a plain Go slice since member
// declaration order is exactly what a slice already preserves.
type ContainerDef struct {
	Name      string
	Members   []ContainerMemberDef
	Functions map[string]ContainerFunctionDef
}

// NewContainerDef starts an empty container definition named name.
func NewContainerDef(name string) *ContainerDef {
	return &ContainerDef{Name: name, Functions: map[string]ContainerFunctionDef{}}
}

// AddMember appends a field to the end of the container's layout.
func (c *ContainerDef) AddMember(m ContainerMemberDef) {
	c.Members = append(c.Members, m)
}

// AddFunction registers a member function, failing if the name collides
// with one already attached to this container.
func (c *ContainerDef) AddFunction(name string, def ContainerFunctionDef) error {
	if _, ok := c.Functions[name]; ok {
		return &ErrDuplicateFunction{Name: name}
	}
	c.Functions[name] = def
	return nil
}

// Function looks up a member function by name.
func (c *ContainerDef) Function(name string) (ContainerFunctionDef, error) {
	def, ok := c.Functions[name]
	if !ok {
		return ContainerFunctionDef{}, ErrUnknownContainerFunc
	}
	return def, nil
}

// OffsetOf returns the byte offset of member within the container's
// flattened in-memory layout, walking members in declaration order and
// summing sizeOf for each one before it.
func (c *ContainerDef) OffsetOf(member string, sizeOf func(ast.Type) (int, error)) (int, error) {
	offset := 0
	for _, m := range c.Members {
		if m.Name == member {
			return offset, nil
		}
		size, err := sizeOf(m.Type)
		if err != nil {
			return 0, err
		}
		offset += size
	}
	return 0, &ErrUnknownVariable{Name: member}
}

// Size returns the total flattened byte size of the container, the Other
// case of the size table (sum of member sizes).
func (c *ContainerDef) Size(sizeOf func(ast.Type) (int, error)) (int, error) {
	total := 0
	for _, m := range c.Members {
		size, err := sizeOf(m.Type)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}
