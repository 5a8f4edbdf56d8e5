// bridgectl deploys the Dai bridge contracts to an L1 chain and its Arbitrum L2,
// and locates existing deployments from the recorded addresses.
package main

import "github.com/Bidon15/daibridge/cmd/bridgectl/cmd"

func main() {
	cmd.Execute()
}
