package tracker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xrplwatch/valtrack/logging"
	"github.com/xrplwatch/valtrack/logging/fields"
	"github.com/xrplwatch/valtrack/names"
	"github.com/xrplwatch/valtrack/networkconfig"
	"github.com/xrplwatch/valtrack/registry"
	"github.com/xrplwatch/valtrack/unl"
)

// Options is the tracker configuration, loadable through cleanenv.
type Options struct {
	Network             string            `yaml:"Network" env:"NETWORK" env-default:"mainnet" env-description:"Network to track: mainnet, testnet or devnet"`
	UNLEndpoint         string            `yaml:"UNLEndpoint" env:"UNL_ENDPOINT" env-description:"Override for the network's validator list endpoint"`
	NameServiceEndpoint string            `yaml:"NameServiceEndpoint" env:"NAME_SERVICE_ENDPOINT" env-description:"Override for the validator name registry endpoint"`
	Upstreams           []string          `yaml:"Upstreams" env:"UPSTREAMS" env-description:"Websocket addresses of upstream nodes; defaults to the network's public nodes"`
	RequireMasterKey    bool              `yaml:"RequireMasterKey" env:"REQUIRE_MASTER_KEY" env-description:"Drop votes whose signing key has no known master identity"`
	HeartbeatEnabled    bool              `yaml:"HeartbeatEnabled" env:"HEARTBEAT_ENABLED" env-default:"true" env-description:"Terminate streams that stop answering pings"`
	PingInterval        time.Duration     `yaml:"PingInterval" env:"PING_INTERVAL" env-default:"15s" env-description:"Outbound ping cadence"`
	LatencyMargin       time.Duration     `yaml:"LatencyMargin" env:"LATENCY_MARGIN" env-default:"4s" env-description:"Grace added to the ping interval before a stream is declared dead"`
	SubscribeManifests  bool              `yaml:"SubscribeManifests" env:"SUBSCRIBE_MANIFESTS" env-description:"Subscribe to the manifests stream; off by default, see stream.Options"`
	RefreshInterval     time.Duration     `yaml:"RefreshInterval" env:"REFRESH_INTERVAL" env-default:"24h" env-description:"Validator list refresh cadence"`
	NameSeeds           map[string]string `yaml:"NameSeeds" env-description:"Preloaded identity to display name mappings"`
}

// Node wires the fetcher, resolver and registry for one network and owns
// their lifecycle.
type Node struct {
	logger   *zap.Logger
	network  networkconfig.NetworkConfig
	registry *registry.Registry
}

func New(logger *zap.Logger, opts Options, cb registry.Callbacks) (*Node, error) {
	network, err := networkconfig.GetNetworkConfigByName(opts.Network)
	if err != nil {
		return nil, errors.Wrap(err, "could not resolve network")
	}
	if opts.UNLEndpoint != "" {
		network.UNLEndpoint = opts.UNLEndpoint
	}
	if opts.NameServiceEndpoint != "" {
		network.NameServiceEndpoint = opts.NameServiceEndpoint
	}
	upstreams := opts.Upstreams
	if len(upstreams) == 0 {
		upstreams = network.DefaultUpstreams
	}

	fetcher := unl.NewFetcher(logger.Named(logging.NameUNLFetcher), network.UNLEndpoint)
	resolver := names.NewResolver(logger.Named(logging.NameNameResolver), network.NameServiceEndpoint)
	resolver.Seed(opts.NameSeeds)

	reg := registry.New(
		logger.Named(logging.NameValidatorRegistry),
		fetcher,
		resolver,
		cb,
		registry.Options{
			Upstreams:          upstreams,
			RequireMasterKey:   opts.RequireMasterKey,
			HeartbeatEnabled:   opts.HeartbeatEnabled,
			PingInterval:       opts.PingInterval,
			LatencyMargin:      opts.LatencyMargin,
			SubscribeManifests: opts.SubscribeManifests,
			RefreshInterval:    opts.RefreshInterval,
		},
	)

	return &Node{
		logger:   logger,
		network:  network,
		registry: reg,
	}, nil
}

func (n *Node) Start(ctx context.Context) error {
	n.logger.Info("starting tracker", fields.Network(n.network.Name), fields.Endpoint(n.network.UNLEndpoint))
	return n.registry.Start(ctx)
}

func (n *Node) Stop() error {
	return n.registry.Stop()
}

func (n *Node) Registry() *registry.Registry {
	return n.registry
}
