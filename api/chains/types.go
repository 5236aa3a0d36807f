// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chains

import "github.com/boostmesh/mesh/builtin/settlement"

func settlementType(payload []byte) (string, error) {
	typ, err := settlement.PayloadTypeOf(payload)
	if err != nil {
		return "", err
	}
	return typ.String(), nil
}
