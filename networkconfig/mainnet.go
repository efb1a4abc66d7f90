package networkconfig

var Mainnet = NetworkConfig{
	Name:                "mainnet",
	UNLEndpoint:         "https://vl.ripple.com",
	NameServiceEndpoint: "https://data.xrpl.org/v1/network/validators",
	DefaultUpstreams: []string{
		"wss://s1.ripple.com",
		"wss://s2.ripple.com",
		"wss://xrplcluster.com",
	},
}
