// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	tests := []struct {
		name    string
		x, y, d *big.Int
		want    *big.Int
		wantErr error
	}{
		{"simple", big.NewInt(10), big.NewInt(3), big.NewInt(4), big.NewInt(7), nil},
		{"floor", big.NewInt(1), big.NewInt(1), big.NewInt(3), big.NewInt(0), nil},
		{"wide intermediate", maxU256, big.NewInt(2), big.NewInt(4), new(big.Int).Rsh(maxU256, 1), nil},
		{"overflow", maxU256, big.NewInt(2), big.NewInt(1), nil, ErrOverflow},
		{"zero divisor", big.NewInt(1), big.NewInt(1), big.NewInt(0), nil, ErrDivisionByZero},
		{"negative", big.NewInt(-1), big.NewInt(1), big.NewInt(1), nil, ErrNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MulDiv(tt.x, tt.y, tt.d)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestAddSub(t *testing.T) {
	sum, err := Add(big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), sum)

	diff, err := Sub(big.NewInt(3), big.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), diff)

	_, err = Sub(big.NewInt(2), big.NewInt(3))
	assert.ErrorIs(t, err, ErrOverflow)

	assert.Equal(t, big.NewInt(2), Min(big.NewInt(2), big.NewInt(3)))
	assert.Equal(t, new(big.Int), Big(nil))
}

func TestEpochOf(t *testing.T) {
	assert.Equal(t, uint64(0), EpochOf(EpochLength-1, 0))
	assert.Equal(t, uint64(1), EpochOf(EpochLength, 0))
	assert.Equal(t, uint64(5), EpochOf(50, 10))
	assert.Equal(t, uint64(50), EpochStart(5, 10))
}
