// Package resource defines the fully qualified names that key the robot's
// component registry.
//
// A name is the 4-tuple (namespace, type, subtype, name); the canonical
// string form is "namespace:type:subtype/name". The tuple is the primary key
// of the registry — two handles never share one.
package resource

import (
	"fmt"
	"strings"

	commonpb "go.viam.com/api/common/v1"
)

// DefaultNamespace is the namespace used for built-in components.
const DefaultNamespace = "rdk"

// TypeComponent is the resource type for hardware components.
const TypeComponent = "component"

// Subtypes of the supported component classes.
const (
	SubtypeMotor  = "motor"
	SubtypeBoard  = "board"
	SubtypeBase   = "base"
	SubtypeCamera = "camera"
)

// Name is a fully qualified resource name.
type Name struct {
	Namespace string
	Type      string
	Subtype   string
	Name      string
}

// NewName returns a Name from its four parts.
func NewName(namespace, typ, subtype, name string) Name {
	return Name{Namespace: namespace, Type: typ, Subtype: subtype, Name: name}
}

// NewComponent returns a component Name in the default namespace.
func NewComponent(subtype, name string) Name {
	return Name{
		Namespace: DefaultNamespace,
		Type:      TypeComponent,
		Subtype:   subtype,
		Name:      name,
	}
}

// String returns the canonical form "namespace:type:subtype/name".
func (n Name) String() string {
	return fmt.Sprintf("%s:%s:%s/%s", n.Namespace, n.Type, n.Subtype, n.Name)
}

// Validate reports an error if any part is empty, contains a byte outside
// printable ASCII (space and control bytes included), or contains ':' or '/'.
func (n Name) Validate() error {
	for _, part := range []struct{ label, v string }{
		{"namespace", n.Namespace},
		{"type", n.Type},
		{"subtype", n.Subtype},
		{"name", n.Name},
	} {
		if part.v == "" {
			return fmt.Errorf("resource name: empty %s", part.label)
		}
		for i := 0; i < len(part.v); i++ {
			if part.v[i] > 0x7e || part.v[i] < 0x21 {
				return fmt.Errorf("resource name: %s %q is not printable ASCII", part.label, part.v)
			}
		}
		if strings.ContainsAny(part.v, ":/") {
			return fmt.Errorf("resource name: %s %q contains a reserved separator", part.label, part.v)
		}
	}
	return nil
}

// ToProto converts n to its wire representation.
func (n Name) ToProto() *commonpb.ResourceName {
	return &commonpb.ResourceName{
		Namespace: n.Namespace,
		Type:      n.Type,
		Subtype:   n.Subtype,
		Name:      n.Name,
	}
}

// FromProto converts a wire resource name to a Name.
func FromProto(pb *commonpb.ResourceName) Name {
	return Name{
		Namespace: pb.GetNamespace(),
		Type:      pb.GetType(),
		Subtype:   pb.GetSubtype(),
		Name:      pb.GetName(),
	}
}
