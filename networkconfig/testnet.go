package networkconfig

var Testnet = NetworkConfig{
	Name:                "testnet",
	UNLEndpoint:         "https://vl.altnet.rippletest.net",
	NameServiceEndpoint: "",
	DefaultUpstreams: []string{
		"wss://s.altnet.rippletest.net:51233",
	},
}
