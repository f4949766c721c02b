package tsa

import (
	"fmt"
	"regexp"

	"github.com/tsalab/stealthd/internal/native"
	"github.com/tsalab/stealthd/pkg/tsa/logging"
	"github.com/tsalab/stealthd/pkg/tsa/params"
)

// AdapterFactory binds an opened library. It owns lib on success and must
// not close it on failure; the caller does.
type AdapterFactory func(lib native.Library, log logging.Logger) (Adapter, error)

// Descriptor is the static description of a scheme. It is immutable once
// registered.
type Descriptor struct {
	ID           string
	DisplayName  string
	Description  string
	Capabilities Capability
	ParamFamily  params.Family
	// Library is the shared object file name, resolved against the
	// configured library directory unless overridden.
	Library    string
	NewAdapter AdapterFactory
}

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Validate checks a descriptor before registration.
func (d Descriptor) Validate() error {
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("%w: scheme id %q", ErrInvalidArgument, d.ID)
	}
	if d.ParamFamily != params.FamilyPairing && d.ParamFamily != params.FamilyCurve {
		return fmt.Errorf("%w: scheme %s has no parameter family", ErrInvalidArgument, d.ID)
	}
	if !d.Capabilities.Has(CapSetup) {
		return fmt.Errorf("%w: scheme %s must declare setup", ErrInvalidArgument, d.ID)
	}
	if d.Capabilities&^AllCapabilities != 0 {
		return fmt.Errorf("%w: scheme %s declares unknown capabilities", ErrInvalidArgument, d.ID)
	}
	if d.Library == "" {
		return fmt.Errorf("%w: scheme %s has no library", ErrInvalidArgument, d.ID)
	}
	if d.NewAdapter == nil {
		return fmt.Errorf("%w: scheme %s has no adapter factory", ErrInvalidArgument, d.ID)
	}
	return nil
}

// SchemeInfo is the caller-facing view of a registered scheme.
type SchemeInfo struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"display_name"`
	Description  string        `json:"description,omitempty"`
	Capabilities []string      `json:"capabilities"`
	ParamFamily  params.Family `json:"param_family"`
	Active       bool          `json:"active"`
	State        State         `json:"state"`
}

func (d Descriptor) info(state State) SchemeInfo {
	return SchemeInfo{
		ID:           d.ID,
		DisplayName:  d.DisplayName,
		Description:  d.Description,
		Capabilities: d.Capabilities.Names(),
		ParamFamily:  d.ParamFamily,
		Active:       state != StateRegistered,
		State:        state,
	}
}
