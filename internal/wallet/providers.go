package wallet

type Provider struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
}

var defaultProviders = []Provider{
	{ID: "massa-station", Name: "Massa Station", Installed: true},
	{ID: "massa-wallet", Name: "Massa Wallet", Installed: true},
	{ID: "metamask", Name: "MetaMask", Installed: false},
	{ID: "walletconnect", Name: "WalletConnect", Installed: true},
}

func DefaultProviders() []Provider {
	out := make([]Provider, len(defaultProviders))
	copy(out, defaultProviders)
	return out
}

func findProvider(providers []Provider, id string) (Provider, bool) {
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
