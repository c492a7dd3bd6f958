package defs

import (
	"strings"
)

type ServiceType int

const (
	TypeUnsupported ServiceType = iota
	TypeNodeJS
)

const nodeJSType = "nodejs"

// ParseServiceType matches raw exactly; padded or differently cased names are
// unsupported.
func ParseServiceType(raw string) ServiceType {
	switch raw {
	case nodeJSType:
		return TypeNodeJS
	default:
		return TypeUnsupported
	}
}

func (t ServiceType) String() string {
	switch t {
	case TypeNodeJS:
		return nodeJSType
	default:
		return "unsupported"
	}
}

// ServiceDescriptor is a resolved service. Approot is slash-separated,
// cleaned and relative to the program root ("." for the root itself).
type ServiceDescriptor struct {
	Name    string
	Type    ServiceType
	RawType string
	Approot string
	Config  map[string]any
	Process string
}

// Depth is the number of path components in Approot.
func (s ServiceDescriptor) Depth() int {
	if s.Approot == "" || s.Approot == "." {
		return 0
	}
	return len(strings.Split(s.Approot, "/"))
}

// DeploymentConfig lists services in descriptor order.
type DeploymentConfig []ServiceDescriptor

func (c DeploymentConfig) Lookup(name string) (ServiceDescriptor, bool) {
	for _, svc := range c {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceDescriptor{}, false
}

func (c DeploymentConfig) Names() []string {
	names := make([]string, len(c))
	for i, svc := range c {
		names[i] = svc.Name
	}
	return names
}

func defaultConfig(t ServiceType) map[string]any {
	switch t {
	case TypeNodeJS:
		return map[string]any{"node_version": "v0.8.x"}
	default:
		return nil
	}
}
