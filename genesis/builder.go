// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/pkg/errors"

	"github.com/boostmesh/mesh/builtin"
	"github.com/boostmesh/mesh/runtime"
)

// Builder helper to initialize the contracts of a fresh chain.
type Builder struct {
	setup *builtin.Setup
	calls []call
}

type call struct {
	name string
	fn   runtime.Func
}

// Setup sets the one-off contract configuration.
func (b *Builder) Setup(setup *builtin.Setup) *Builder {
	b.setup = setup
	return b
}

// Call adds a call run after the contracts are initialized.
func (b *Builder) Call(name string, fn runtime.Func) *Builder {
	b.calls = append(b.calls, call{name, fn})
	return b
}

// Build initializes the chain's contracts and runs the calls in one transaction.
func (b *Builder) Build(chain *runtime.Chain) error {
	if b.setup == nil {
		return errors.New("no setup")
	}
	return chain.Exec("genesis", func(c *builtin.Contracts, now uint64) error {
		if err := c.Initialize(b.setup); err != nil {
			return errors.WithMessage(err, "initialize")
		}
		for _, call := range b.calls {
			if err := call.fn(c, now); err != nil {
				return errors.WithMessage(err, call.name)
			}
		}
		return nil
	})
}
