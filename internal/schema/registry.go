package schema

import "fmt"

// Scale is the number of decimal places used by a scaled integer.
// Example: Scale=4 means a tick of 18254 represents 1.8254.
type Scale int32

// Asset describes a transferable asset.
type Asset struct {
	ID   AssetID
	Name string
}

// MarketSpec describes a tracked market: its asset pair, tick spacing,
// price scale, and the tick recorded at initialization.
type MarketSpec struct {
	ID          MarketID
	Name        string
	Base        AssetID
	Quote       AssetID
	TickSpacing Tick
	PriceScale  Scale
	InitialTick Tick
}

// InputAsset returns the asset an order of the given direction deposits.
func (m MarketSpec) InputAsset(direction Direction) AssetID {
	if direction == DirectionSellBase {
		return m.Base
	}
	return m.Quote
}

// OutputAsset returns the asset an order of the given direction receives.
func (m MarketSpec) OutputAsset(direction Direction) AssetID {
	if direction == DirectionSellBase {
		return m.Quote
	}
	return m.Base
}

// Registry stores asset and market mappings in a compact form.
type Registry struct {
	assets       []Asset
	markets      []MarketSpec
	assetByName  map[string]AssetID
	marketByName map[string]MarketID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		assetByName:  make(map[string]AssetID),
		marketByName: make(map[string]MarketID),
	}
}

// AddAsset registers a new asset and returns its ID.
func (r *Registry) AddAsset(name string) (AssetID, error) {
	if name == "" {
		return 0, fmt.Errorf("asset name is empty")
	}
	if id, ok := r.assetByName[name]; ok {
		return id, fmt.Errorf("asset already exists: %s", name)
	}
	id := AssetID(len(r.assets) + 1)
	r.assets = append(r.assets, Asset{ID: id, Name: name})
	r.assetByName[name] = id
	return id, nil
}

// AddMarket registers a new market and returns its ID.
func (r *Registry) AddMarket(spec MarketSpec) (MarketID, error) {
	if spec.Name == "" {
		return 0, fmt.Errorf("market name is empty")
	}
	if id, ok := r.marketByName[spec.Name]; ok {
		return id, fmt.Errorf("market already exists: %s", spec.Name)
	}
	if spec.TickSpacing <= 0 {
		return 0, fmt.Errorf("tick spacing must be > 0: %s", spec.Name)
	}
	if spec.Base == spec.Quote {
		return 0, fmt.Errorf("market assets must differ: %s", spec.Name)
	}
	id := MarketID(len(r.markets) + 1)
	spec.ID = id
	r.markets = append(r.markets, spec)
	r.marketByName[spec.Name] = id
	return id, nil
}

// AssetIDByName resolves an asset name.
func (r *Registry) AssetIDByName(name string) (AssetID, bool) {
	id, ok := r.assetByName[name]
	return id, ok
}

// MarketIDByName resolves a market name.
func (r *Registry) MarketIDByName(name string) (MarketID, bool) {
	id, ok := r.marketByName[name]
	return id, ok
}

// Market returns the spec for a market ID.
func (r *Registry) Market(id MarketID) (MarketSpec, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(r.markets) {
		return MarketSpec{}, false
	}
	return r.markets[idx], true
}

// Asset returns the asset for an asset ID.
func (r *Registry) Asset(id AssetID) (Asset, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(r.assets) {
		return Asset{}, false
	}
	return r.assets[idx], true
}

// Markets returns all registered markets.
func (r *Registry) Markets() []MarketSpec {
	out := make([]MarketSpec, len(r.markets))
	copy(out, r.markets)
	return out
}
