package naming

// Declaration is what the resolver needs to know about a declaration-shaped
// node: its own identifier, if any, and the variable it initializes, if any.
type Declaration struct {
	// OwnName is the identifier of a named function or class.
	OwnName string

	// BindingName is the identifier of the variable declarator this
	// declaration is the initializer of.
	BindingName string
}

// Resolve picks the component name for a declaration. The first non-empty of
// the own name, the binding name and the ambient name wins; otherwise the
// file-derived name (or Unresolved) is used.
func Resolve(decl Declaration, ambient string, file FileDescriptor) string {
	switch {
	case decl.OwnName != "":
		return decl.OwnName
	case decl.BindingName != "":
		return decl.BindingName
	case ambient != "":
		return ambient
	default:
		return file.ComponentName()
	}
}

// Compound joins an enclosing component name with the local binding that
// holds one of its elements, e.g. "MyComponent->markup".
func Compound(outer, inner string) string {
	if outer == "" || outer == inner {
		return inner
	}
	if inner == "" {
		return outer
	}
	return outer + "->" + inner
}
