package networkconfig

var Devnet = NetworkConfig{
	Name:                "devnet",
	UNLEndpoint:         "https://vl.devnet.rippletest.net",
	NameServiceEndpoint: "",
	DefaultUpstreams: []string{
		"wss://s.devnet.rippletest.net:51233",
	},
}
