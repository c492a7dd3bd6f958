package v1

// Program is the program descriptor found at the root of the tree being
// deployed (program.json, program.yaml or program.yml).
type Program struct {
	Name     string   `json:"name"`
	Flavor   string   `json:"flavor,omitempty"`
	Options  Options  `json:"options"`
	Services Services `json:"-"`

	// Config is merged into the "config" section of the root runtime
	// descriptor of the exported tree.
	Config map[string]any `json:"config,omitempty"`
}

type Options struct {
	PushDependencies    bool              `json:"pushDependencies,omitempty"`
	RuntimeDependencies map[string]string `json:"runtimeDependencies,omitempty"`
}

// Service is one entry of a deployment descriptor. Approot is left untyped
// so that a non-string value is reported by the resolver rather than by the
// decoder.
type Service struct {
	Type    string         `json:"type"`
	Approot any            `json:"approot,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
	Process string         `json:"process,omitempty"`
}

type NamedService struct {
	Name    string
	Service Service
}

// Services keeps descriptor document order.
type Services []NamedService
