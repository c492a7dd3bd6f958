package defs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"
	"vinr.eu/launchpad/internal/defs/v1"
	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrReadFailed   = errs.Kind(errs.ErrIO, "defs: read failed")
	ErrDecodeFailed = errs.Kind(errs.ErrIO, "defs: decode failed")
	ErrNoProgram    = errs.Kind(errs.ErrIO, "defs: no program descriptor")
)

var programFiles = []string{"program.json", "program.yaml", "program.yml"}

// LoadProgram reads the first program descriptor found in dir.
func LoadProgram(dir string) (*v1.Program, error) {
	for _, name := range programFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errs.WrapMsgErr(ErrReadFailed, path, err)
		}
		prog, err := DecodeProgram(data)
		if err != nil {
			return nil, errs.WrapMsgErr(ErrDecodeFailed, path, err)
		}
		return prog, nil
	}
	return nil, errs.WrapMsg(ErrNoProgram, "checked "+dir)
}

func DecodeProgram(data []byte) (*v1.Program, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, err
	}
	var prog v1.Program
	if err := json.Unmarshal(jsonData, &prog); err != nil {
		return nil, err
	}
	var ordered struct {
		Services yaml.MapSlice `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &ordered); err != nil {
		return nil, err
	}
	services, err := servicesFromMapSlice(ordered.Services)
	if err != nil {
		return nil, err
	}
	prog.Services = services
	return &prog, nil
}

// DecodeServices decodes a deployment descriptor whose top level maps
// service names to service entries.
func DecodeServices(data []byte) (v1.Services, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(ErrDecodeFailed, err)
	}
	services, err := servicesFromMapSlice(doc)
	if err != nil {
		return nil, errs.Wrap(ErrDecodeFailed, err)
	}
	return services, nil
}

func servicesFromMapSlice(ms yaml.MapSlice) (v1.Services, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	services := make(v1.Services, 0, len(ms))
	for _, item := range ms {
		name := fmt.Sprint(item.Key)
		raw, err := json.Marshal(item.Value)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		var svc v1.Service
		if err := json.Unmarshal(raw, &svc); err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		services = append(services, v1.NamedService{Name: name, Service: svc})
	}
	return services, nil
}

// Encode renders cfg as a deployment descriptor. Output is stable: services
// keep their order and config keys are sorted.
func Encode(cfg DeploymentConfig) ([]byte, error) {
	doc := make(yaml.MapSlice, 0, len(cfg))
	for _, svc := range cfg {
		body := yaml.MapSlice{
			{Key: "type", Value: svc.RawType},
			{Key: "approot", Value: svc.Approot},
		}
		if len(svc.Config) > 0 {
			body = append(body, yaml.MapItem{Key: "config", Value: sortedValue(svc.Config)})
		}
		if svc.Process != "" {
			body = append(body, yaml.MapItem{Key: "process", Value: svc.Process})
		}
		doc = append(doc, yaml.MapItem{Key: svc.Name, Value: body})
	}
	out, err := yaml.MarshalWithOptions(doc, yaml.Indent(4))
	if err != nil {
		return nil, errs.Wrap(ErrDecodeFailed, err)
	}
	return out, nil
}

func sortedValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ms := make(yaml.MapSlice, 0, len(keys))
		for _, k := range keys {
			ms = append(ms, yaml.MapItem{Key: k, Value: sortedValue(t[k])})
		}
		return ms
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortedValue(e)
		}
		return out
	default:
		return v
	}
}
