// Package builtin lists the schemes shipped with stealthd.
package builtin

import (
	"github.com/tsalab/stealthd/pkg/tsa"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/cryptonote"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/hdwsa"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/sitaiba"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/stealth"
	"github.com/tsalab/stealthd/pkg/tsa/schemes/zhao"
)

// Descriptors returns every built-in scheme in display order.
func Descriptors() []tsa.Descriptor {
	return []tsa.Descriptor{
		stealth.Descriptor(),
		sitaiba.Descriptor(),
		hdwsa.Descriptor(),
		cryptonote.Descriptor(),
		zhao.Descriptor(),
	}
}

// Register adds every built-in scheme to r.
func Register(r *tsa.Registry) error {
	for _, d := range Descriptors() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
