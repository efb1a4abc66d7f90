package networkconfig

import (
	"fmt"
)

// NetworkConfig carries the per-network endpoints the tracker talks to: the
// published validator list, the name registry and the default upstream nodes.
type NetworkConfig struct {
	Name                string
	UNLEndpoint         string
	NameServiceEndpoint string
	DefaultUpstreams    []string
}

var SupportedConfigs = map[string]NetworkConfig{
	Mainnet.Name: Mainnet,
	Testnet.Name: Testnet,
	Devnet.Name:  Devnet,
}

func GetNetworkConfigByName(name string) (NetworkConfig, error) {
	if network, ok := SupportedConfigs[name]; ok {
		return network, nil
	}

	return NetworkConfig{}, fmt.Errorf("network not supported: %v", name)
}

func (n NetworkConfig) String() string {
	return n.Name
}
