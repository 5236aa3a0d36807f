// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import "math/big"

// protocol constants
const (
	// FeeDenominator is the basis of all fee fractions (basis points).
	FeeDenominator = 10000
	// MaxFees is the upper bound of the sum of all fee fractions.
	MaxFees = 4000
	// MultiplierDenominator represents a 1.0x reward multiplier.
	MultiplierDenominator = 10000
	// MaxMultiplier caps a reward multiplier at 10x.
	MaxMultiplier = 10 * MultiplierDenominator

	// EpochLength is the default length of a distribution epoch in seconds.
	EpochLength uint64 = 7 * 24 * 3600
	// ForceShutdownDelay is the waiting period between queueing and executing a force shutdown.
	ForceShutdownDelay uint64 = 30 * 24 * 3600
)

// Precision is the fixed point scale of reward-per-token indexes.
var Precision = big.NewInt(1e18)

// EpochOf returns the epoch number containing the timestamp.
func EpochOf(now, length uint64) uint64 {
	if length == 0 {
		length = EpochLength
	}
	return now / length
}

// EpochStart returns the first timestamp of the epoch.
func EpochStart(epoch, length uint64) uint64 {
	if length == 0 {
		length = EpochLength
	}
	return epoch * length
}
