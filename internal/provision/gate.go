package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
	"vinr.eu/launchpad/internal/toolexec"
)

var (
	ErrRecordUnreadable = errs.Kind(errs.ErrIO, "provision: cannot read provisioning record")
	ErrRecordMalformed  = errs.Kind(errs.ErrIO, "provision: malformed provisioning record")
	ErrNameMismatch     = errs.Kind(errs.ErrValidation, "provision: application name mismatch")
	ErrNoCommand        = errs.Kind(errs.ErrValidation, "provision: no provisioning command configured")
)

const (
	FlavorSandbox = "sandbox"
	FlavorLive    = "live"

	DefaultName = "test"
)

// DefaultCommand creates the remote application; flavor and name are appended.
var DefaultCommand = []string{"dotcloud", "create", "-f"}

type State int

const (
	Unprovisioned State = iota
	Match
	Mismatch
)

func (s State) String() string {
	switch s {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unprovisioned"
	}
}

// Record is the provisioning record written by the platform tooling.
type Record struct {
	Application string `json:"application"`
	Flavor      string `json:"flavor,omitempty"`
}

// ReadRecord returns nil when no record exists at path.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsgErr(ErrRecordUnreadable, path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.WrapMsgErr(ErrRecordMalformed, path, err)
	}
	return &rec, nil
}

// NormalizeFlavor maps anything other than live to sandbox.
func NormalizeFlavor(flavor string) string {
	if flavor == FlavorLive {
		return FlavorLive
	}
	return FlavorSandbox
}

type Gate struct {
	RecordPath string
	Dir        string
	Command    []string
	Runner     toolexec.Runner
}

// Check derives the provisioning state from the record on disk.
func (g *Gate) Check(declared string) (State, *Record, error) {
	rec, err := ReadRecord(g.RecordPath)
	if err != nil {
		return Unprovisioned, nil, err
	}
	switch {
	case rec == nil:
		return Unprovisioned, nil, nil
	case rec.Application == declared:
		return Match, rec, nil
	default:
		return Mismatch, rec, nil
	}
}

func (g *Gate) Ensure(ctx context.Context, declared, flavor string) error {
	state, rec, err := g.Check(declared)
	if err != nil {
		return err
	}
	switch state {
	case Match:
		logger.Debug(ctx, "application already provisioned", "application", declared)
		return nil
	case Mismatch:
		return errs.WrapMsg(ErrNameMismatch, fmt.Sprintf(
			"provisioned application name '%s' does not match declared '%s'. Delete '%s' and try again.",
			rec.Application, declared, g.RecordPath))
	}

	words := g.Command
	if len(words) == 0 {
		return ErrNoCommand
	}
	flavor = NormalizeFlavor(flavor)
	cmd, err := toolexec.Split(words, g.Dir, flavor, declared)
	if err != nil {
		return err
	}
	logger.Info(ctx, "provisioning application", "application", declared, "flavor", flavor)
	runner := g.Runner
	if runner == nil {
		runner = toolexec.ExecRunner{}
	}
	return runner.Run(ctx, cmd)
}
