package credits

import "github.com/josh-vincent/roast-me-characters-sub001/config"

type Package struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	PriceCents int    `json:"price_cents"`
	Currency   string `json:"currency"`
	Popular    bool   `json:"popular,omitempty"`
}

// Provider describes the hosted checkout the client should open.
type Provider struct {
	Name           string `json:"name"`
	Mode           string `json:"mode"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

type Catalog struct {
	Packages []Package `json:"packages"`
	Provider Provider  `json:"provider"`
}

var defaultPackages = []Package{
	{ID: "starter", Name: "Starter", Credits: 5, PriceCents: 499, Currency: "usd"},
	{ID: "popular", Name: "Roast Pack", Credits: 15, PriceCents: 999, Currency: "usd", Popular: true},
	{ID: "pro", Name: "Roast Master", Credits: 50, PriceCents: 2499, Currency: "usd"},
}

// NewCatalog picks live payment keys in production and test keys elsewhere.
func NewCatalog(cfg config.Config) Catalog {
	provider := Provider{Name: cfg.Payment.Provider, Mode: "test", PublishableKey: cfg.Payment.TestPublishableKey}
	if cfg.IsProduction() {
		provider.Mode = "live"
		provider.PublishableKey = cfg.Payment.LivePublishableKey
	}

	packages := make([]Package, len(defaultPackages))
	copy(packages, defaultPackages)

	return Catalog{Packages: packages, Provider: provider}
}

// Find returns the package with the given id.
func (c Catalog) Find(id string) (Package, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
