package defs

import (
	"fmt"
	"maps"

	"vinr.eu/launchpad/internal/defs/v1"
)

// mapServiceV1 maps a descriptor entry that is trusted to be well formed.
func mapServiceV1(name string, svc v1.Service) ServiceDescriptor {
	approot := "."
	if svc.Approot != nil {
		approot = fmt.Sprint(svc.Approot)
	}
	return ServiceDescriptor{
		Name:    name,
		Type:    ParseServiceType(svc.Type),
		RawType: svc.Type,
		Approot: approot,
		Config:  maps.Clone(svc.Config),
		Process: svc.Process,
	}
}
