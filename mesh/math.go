// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a value does not fit in 256 bits.
	ErrOverflow = errors.New("uint256 overflow")
	// ErrNegative is returned when a value is negative.
	ErrNegative = errors.New("negative amount")
	// ErrDivisionByZero is returned on a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// ToUint256 converts a big integer into a 256 bit word, rejecting negative or oversized values.
func ToUint256(x *big.Int) (*uint256.Int, error) {
	if x == nil {
		return new(uint256.Int), nil
	}
	if x.Sign() < 0 {
		return nil, ErrNegative
	}
	v, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// MulDiv computes floor(x * y / d) with full 512 bit intermediate precision.
// The result must fit in 256 bits.
func MulDiv(x, y, d *big.Int) (*big.Int, error) {
	ux, err := ToUint256(x)
	if err != nil {
		return nil, err
	}
	uy, err := ToUint256(y)
	if err != nil {
		return nil, err
	}
	ud, err := ToUint256(d)
	if err != nil {
		return nil, err
	}
	if ud.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrOverflow
	}
	return z.ToBig(), nil
}

// Add returns x + y, rejecting results beyond 256 bits.
func Add(x, y *big.Int) (*big.Int, error) {
	ux, err := ToUint256(x)
	if err != nil {
		return nil, err
	}
	uy, err := ToUint256(y)
	if err != nil {
		return nil, err
	}
	z, overflow := new(uint256.Int).AddOverflow(ux, uy)
	if overflow {
		return nil, ErrOverflow
	}
	return z.ToBig(), nil
}

// Sub returns x - y, rejecting underflow.
func Sub(x, y *big.Int) (*big.Int, error) {
	ux, err := ToUint256(x)
	if err != nil {
		return nil, err
	}
	uy, err := ToUint256(y)
	if err != nil {
		return nil, err
	}
	z, underflow := new(uint256.Int).SubOverflow(ux, uy)
	if underflow {
		return nil, ErrOverflow
	}
	return z.ToBig(), nil
}

// Min returns a copy of the smaller value.
func Min(x, y *big.Int) *big.Int {
	if x.Cmp(y) <= 0 {
		return new(big.Int).Set(x)
	}
	return new(big.Int).Set(y)
}

// Big returns a non-nil copy of x.
func Big(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}
