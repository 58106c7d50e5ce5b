package networkdefinition

import (
	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"
)

// BuiltInNetwork is the compile-time definition of a hosted first-party
// network: its chain identity, display metadata, and the endpoint subdomain
// the credentialed RPC URL is derived from.
type BuiltInNetwork struct {
	Type             entity.ProviderType
	ChainID          entity.ChainID
	NetworkID        entity.NetworkID
	Name             string
	Ticker           string
	Subdomain        string
	BlockExplorerURL string
}

// Predefined built-in network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Mainnet = BuiltInNetwork{
		Type:             entity.ProviderTypeMainnet,
		ChainID:          "0x1",
		NetworkID:        "1",
		Name:             "Ethereum Mainnet",
		Ticker:           "ETH",
		Subdomain:        "mainnet",
		BlockExplorerURL: "https://etherscan.io",
	}
	Goerli = BuiltInNetwork{
		Type:             entity.ProviderTypeGoerli,
		ChainID:          "0x5",
		NetworkID:        "5",
		Name:             "Goerli",
		Ticker:           "GoerliETH",
		Subdomain:        "goerli",
		BlockExplorerURL: "https://goerli.etherscan.io",
	}
	Sepolia = BuiltInNetwork{
		Type:             entity.ProviderTypeSepolia,
		ChainID:          "0xaa36a7",
		NetworkID:        "11155111",
		Name:             "Sepolia",
		Ticker:           "SepoliaETH",
		Subdomain:        "sepolia",
		BlockExplorerURL: "https://sepolia.etherscan.io",
	}
	LineaGoerli = BuiltInNetwork{
		Type:             entity.ProviderTypeLineaGoerli,
		ChainID:          "0xe704",
		NetworkID:        "59140",
		Name:             "Linea Goerli",
		Ticker:           "LineaETH",
		Subdomain:        "linea-goerli",
		BlockExplorerURL: "https://goerli.lineascan.build",
	}
	LineaMainnet = BuiltInNetwork{
		Type:             entity.ProviderTypeLineaMainnet,
		ChainID:          "0xe708",
		NetworkID:        "59144",
		Name:             "Linea Mainnet",
		Ticker:           "ETH",
		Subdomain:        "linea-mainnet",
		BlockExplorerURL: "https://lineascan.build",
	}
)

// allKnownNetworks is a helper to quickly access all hardcoded definitions.
var allKnownNetworks = map[entity.ProviderType]BuiltInNetwork{
	Mainnet.Type:      Mainnet,
	Goerli.Type:       Goerli,
	Sepolia.Type:      Sepolia,
	LineaGoerli.Type:  LineaGoerli,
	LineaMainnet.Type: LineaMainnet,
}

// ByType returns the built-in definition for t, if t names one.
func ByType(t entity.ProviderType) (BuiltInNetwork, bool) {
	def, ok := allKnownNetworks[t]
	return def, ok
}

// ByChainID returns the built-in definition with the given chain id, if any.
func ByChainID(chainID entity.ChainID) (BuiltInNetwork, bool) {
	for _, def := range allKnownNetworks {
		if def.ChainID == chainID {
			return def, true
		}
	}
	return BuiltInNetwork{}, false
}

// All returns every built-in definition in a stable order.
func All() []BuiltInNetwork {
	return []BuiltInNetwork{Mainnet, Goerli, Sepolia, LineaGoerli, LineaMainnet}
}
