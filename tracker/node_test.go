package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/registry"
)

func TestNewResolvesNetwork(t *testing.T) {
	node, err := New(zap.NewNop(), Options{Network: "mainnet"}, registry.Callbacks{})
	require.NoError(t, err)
	require.Equal(t, "mainnet", node.network.Name)
	require.NotNil(t, node.Registry())

	_, err = New(zap.NewNop(), Options{Network: "moonnet"}, registry.Callbacks{})
	require.ErrorContains(t, err, "network not supported")
}

func TestNewAppliesOverrides(t *testing.T) {
	node, err := New(zap.NewNop(), Options{
		Network:             "testnet",
		UNLEndpoint:         "https://unl.example.net",
		NameServiceEndpoint: "https://names.example.net",
		Upstreams:           []string{"wss://node.example.net"},
	}, registry.Callbacks{})
	require.NoError(t, err)
	require.Equal(t, "https://unl.example.net", node.network.UNLEndpoint)
	require.Equal(t, "https://names.example.net", node.network.NameServiceEndpoint)
}
