// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"
	"math/big"
	mathrand "math/rand/v2"

	"github.com/boostmesh/mesh/mesh"
)

func RandomHash() (b mesh.Bytes32) {
	rand.Read(b[:])
	return
}

func RandAddress() (addr mesh.Address) {
	rand.Read(addr[:])
	return
}

func RandAddresses(n int) []mesh.Address {
	addrs := make([]mesh.Address, n)
	for i := range addrs {
		addrs[i] = RandAddress()
	}
	return addrs
}

func RandInt() int {
	return mathrand.Int() //#nosec G404
}

func RandIntN(n int) int {
	return mathrand.N(n) //#nosec G404
}

// RandAmount returns a random amount in [1, max] whole tokens scaled by 1e18.
func RandAmount(max int64) *big.Int {
	n := big.NewInt(mathrand.Int64N(max) + 1) //#nosec G404
	return n.Mul(n, big.NewInt(1e18))
}

// Ether returns n whole tokens scaled by 1e18.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}
