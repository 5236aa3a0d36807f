// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

// devnetYAML is a primary chain and one sidechain. The sidechain routes its lock and staker
// fees to a collector which reports them to the primary chain.
const devnetYAML = `
owner: owner
launchTime: 1735776000
bridgeFee: "10"
tokens:
  reward: crv
  issuance: mesh
  fee: gas
chains:
  - id: 1
    primary: true
    treasury: treasury
    maxSupply: 50000000 ether
    cliffs: 500
    pools:
      - name: usdc-l2
        kind: siphon
        dst: 2
      - name: mesh-eth
      - name: vemesh
        kind: no-deposit
    alloc:
      - account: owner
        token: crv
        amount: 1000000 ether
      - account: keeper
        token: gas
        amount: 1000000
  - id: 2
    treasury: collector
    fees:
      lockIncentive: 0
      stakerIncentive: 0
      earmarkIncentive: 50
      platformFee: 1450
    pools:
      - name: usdc-l2
    alloc:
      - account: collector
        token: gas
        amount: 1000000
      - account: keeper
        token: gas
        amount: 1000000
`

// Devnet returns the development network genesis.
func Devnet() *Config {
	cfg, err := Parse([]byte(devnetYAML))
	if err != nil {
		panic(err)
	}
	return cfg
}
