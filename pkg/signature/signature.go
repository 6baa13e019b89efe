package signature

import (
	"runtime"
	"strings"
)

// Delimiter separates frame descriptors in a signature.
// It never occurs in Go symbol names.
const Delimiter = ";"

// Frame describes one frame of a captured call stack.
type Frame struct {
	// Function is the function name, without the package qualifier.
	Function string

	// Module is the enclosing unit, i.e. the package import path.
	Module string
}

// Stack is a captured call stack, innermost frame first.
type Stack []Frame

// Builder turns a captured stack into its signature.
type Builder func(Stack) string

// Descriptor returns the "function(module)" form of the frame.
func (f Frame) Descriptor() string {
	return f.Function + "(" + f.Module + ")"
}

// Build returns the signature of the stack: the frame descriptors,
// outermost caller first, joined by Delimiter.
func Build(stack Stack) string {
	descriptors := make([]string, 0, len(stack))
	for _, f := range stack {
		descriptors = append(descriptors, f.Descriptor())
	}
	for i, j := 0, len(descriptors)-1; i < j; i, j = i+1, j-1 {
		descriptors[i], descriptors[j] = descriptors[j], descriptors[i]
	}

	return strings.Join(descriptors, Delimiter)
}

// Split returns the frame descriptors of a signature, outermost first.
func Split(sig string) []string {
	if sig == "" {
		return nil
	}
	return strings.Split(sig, Delimiter)
}

// ParseDescriptor is the inverse of Frame.Descriptor.
// A descriptor without a module suffix is taken as a bare function name.
func ParseDescriptor(d string) Frame {
	if !strings.HasSuffix(d, ")") {
		return Frame{Function: d}
	}
	// Function names may contain parentheses, e.g. "(*T).M", so the module
	// starts at the last opening one.
	i := strings.LastIndex(d, "(")
	if i < 0 {
		return Frame{Function: d}
	}

	return Frame{Function: d[:i], Module: d[i+1 : len(d)-1]}
}

// FromRuntimeFrame splits the package-qualified function name of a runtime
// frame, e.g. "github.com/x/y.(*T).M", into module and function.
func FromRuntimeFrame(rf runtime.Frame) Frame {
	return FromQualifiedName(rf.Function)
}

// FromQualifiedName splits a package-qualified Go function name.
func FromQualifiedName(name string) Frame {
	if name == "" {
		return Frame{Function: "?"}
	}
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return Frame{Function: name}
	}
	dot += slash + 1

	return Frame{Function: name[dot+1:], Module: name[:dot]}
}
