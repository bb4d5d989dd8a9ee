package mevshare

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Network holds the MEV-Share endpoints of one chain.
type Network struct {
	Name      string `yaml:"name"`
	ChainID   uint64 `yaml:"chainId"`
	StreamURL string `yaml:"streamUrl"`
	APIURL    string `yaml:"apiUrl"`
}

// HistoryURL is the base of the event history REST API, derived from the
// stream endpoint.
func (n Network) HistoryURL() string {
	return strings.TrimSuffix(n.StreamURL, "/") + "/api/v1"
}

var (
	NetworkMainnet = Network{
		Name:      "mainnet",
		ChainID:   1,
		StreamURL: "https://mev-share.flashbots.net",
		APIURL:    "https://relay.flashbots.net",
	}
	NetworkGoerli = Network{
		Name:      "goerli",
		ChainID:   5,
		StreamURL: "https://mev-share-goerli.flashbots.net",
		APIURL:    "https://relay-goerli.flashbots.net",
	}
)

var builtinNetworks = map[uint64]Network{
	NetworkMainnet.ChainID: NetworkMainnet,
	NetworkGoerli.ChainID:  NetworkGoerli,
}

// NetworkForChainID resolves the builtin network for a chain id, returning
// ErrUnsupportedNetwork for chains without known MEV-Share endpoints.
func NetworkForChainID(chainID *big.Int) (Network, error) {
	if chainID == nil || !chainID.IsUint64() {
		return Network{}, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, chainID)
	}
	network, ok := builtinNetworks[chainID.Uint64()]
	if !ok {
		return Network{}, fmt.Errorf("%w: chain %d", ErrUnsupportedNetwork, chainID.Uint64())
	}
	return network, nil
}

// LoadNetworksConfig reads extra network definitions from a YAML file, keyed
// by chain id. Entries must carry a name, stream and API endpoint.
func LoadNetworksConfig(path string) (map[uint64]Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks config: %w", err)
	}
	var networks []Network
	if err := yaml.Unmarshal(raw, &networks); err != nil {
		return nil, fmt.Errorf("parse networks config: %w", err)
	}
	out := make(map[uint64]Network, len(networks))
	for _, network := range networks {
		if network.Name == "" || network.ChainID == 0 || network.StreamURL == "" || network.APIURL == "" {
			return nil, fmt.Errorf("incomplete network definition %q", network.Name)
		}
		out[network.ChainID] = network
	}
	return out, nil
}
