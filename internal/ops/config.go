package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yanun0323/decimal"

	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry RegistryConfig `json:"registry"`
	Engine   EngineConfig   `json:"engine"`
	Fees     FeesConfig     `json:"fees"`
	Points   PointsConfig   `json:"points"`
	Journal  JournalConfig  `json:"journal"`
	Snapshot SnapshotConfig `json:"snapshot"`
	Store    StoreConfig    `json:"store"`
	Demo     DemoConfig     `json:"demo"`
}

// RegistryConfig defines asset and market mappings.
type RegistryConfig struct {
	Assets  []AssetConfig  `json:"assets"`
	Markets []MarketConfig `json:"markets"`
}

// AssetConfig describes an asset entry.
type AssetConfig struct {
	Name string `json:"name"`
}

// MarketConfig describes one market. InitialPrice is a decimal quote/base
// price; it is converted to a tick using the market's price scale. The
// quote reserve is derived from the base reserve at that price so the pool
// opens exactly on it.
type MarketConfig struct {
	Name         string          `json:"name"`
	Base         string          `json:"base"`
	Quote        string          `json:"quote"`
	TickSpacing  schema.Tick     `json:"tickSpacing"`
	PriceScale   schema.Scale    `json:"priceScale"`
	InitialPrice decimal.Decimal `json:"initialPrice"`
	BaseReserve  schema.Amount   `json:"baseReserve"`
}

// EngineConfig carries engine tuning.
type EngineConfig struct {
	MaxFillsPerCycle int `json:"maxFillsPerCycle"`
}

// FeesConfig controls the venue's dynamic fee tracker.
type FeesConfig struct {
	Enabled    bool  `json:"enabled"`
	BaseFeeBps int64 `json:"baseFeeBps"`
}

// PointsConfig controls loyalty point issuance on user swaps.
type PointsConfig struct {
	Enabled bool  `json:"enabled"`
	RateBps int64 `json:"rateBps"`
}

// JournalConfig locates the event journal.
type JournalConfig struct {
	Dir        string `json:"dir"`
	FilePrefix string `json:"filePrefix"`
}

// SnapshotConfig locates the state snapshot.
type SnapshotConfig struct {
	Path string `json:"path"`
}

// StoreConfig holds PostgreSQL connection settings for the event store.
type StoreConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// DemoConfig describes scripted activity to run after startup.
type DemoConfig struct {
	Orders []DemoOrderConfig `json:"orders"`
	Swaps  []DemoSwapConfig  `json:"swaps"`
}

// DemoOrderConfig is one scripted order placement.
type DemoOrderConfig struct {
	Market      string          `json:"market"`
	Owner       uint64          `json:"owner"`
	Direction   string          `json:"direction"`
	TargetPrice decimal.Decimal `json:"targetPrice"`
	Amount      schema.Amount   `json:"amount"`
}

// DemoSwapConfig is one scripted user swap.
type DemoSwapConfig struct {
	Market    string        `json:"market"`
	Trader    uint64        `json:"trader"`
	Direction string        `json:"direction"`
	AmountIn  schema.Amount `json:"amountIn"`
}

// MarketBoot is a resolved market plus its opening pool reserves.
type MarketBoot struct {
	Spec         schema.MarketSpec
	BaseReserve  schema.Amount
	QuoteReserve schema.Amount
}

// DemoOrder is a resolved scripted placement.
type DemoOrder struct {
	Market     schema.MarketID
	Owner      schema.AccountID
	Direction  schema.Direction
	TargetTick schema.Tick
	Amount     schema.Amount
}

// DemoSwap is a resolved scripted swap.
type DemoSwap struct {
	Market    schema.MarketID
	Trader    schema.AccountID
	Direction schema.Direction
	AmountIn  schema.Amount
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry *schema.Registry
	Markets  []MarketBoot
	Engine   EngineConfig
	Fees     FeesConfig
	Points   PointsConfig
	Journal  JournalConfig
	Snapshot SnapshotConfig
	Store    StoreConfig
	Orders   []DemoOrder
	Swaps    []DemoSwap
}

// Load reads a JSON config file and resolves names to IDs.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}

	registry, markets, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{
		Registry: registry,
		Markets:  markets,
		Engine:   cfg.Engine,
		Fees:     cfg.Fees,
		Points:   cfg.Points,
		Journal:  cfg.Journal,
		Snapshot: cfg.Snapshot,
		Store:    cfg.Store,
	}

	for _, order := range cfg.Demo.Orders {
		resolved, err := resolveDemoOrder(order, registry)
		if err != nil {
			return Loaded{}, err
		}
		loaded.Orders = append(loaded.Orders, resolved)
	}
	for _, swap := range cfg.Demo.Swaps {
		resolved, err := resolveDemoSwap(swap, registry)
		if err != nil {
			return Loaded{}, err
		}
		loaded.Swaps = append(loaded.Swaps, resolved)
	}
	return loaded, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, []MarketBoot, error) {
	reg := schema.NewRegistry()
	for _, asset := range cfg.Assets {
		if _, err := reg.AddAsset(asset.Name); err != nil {
			return nil, nil, err
		}
	}

	var boots []MarketBoot
	for _, m := range cfg.Markets {
		base, ok := reg.AssetIDByName(m.Base)
		if !ok {
			return nil, nil, fmt.Errorf("asset not found: %s", m.Base)
		}
		quote, ok := reg.AssetIDByName(m.Quote)
		if !ok {
			return nil, nil, fmt.Errorf("asset not found: %s", m.Quote)
		}
		if m.PriceScale < 0 {
			return nil, nil, fmt.Errorf("price scale must be >= 0: %s", m.Name)
		}
		if m.BaseReserve <= 0 {
			return nil, nil, fmt.Errorf("base reserve must be > 0: %s", m.Name)
		}
		tick, err := PriceToTick(m.InitialPrice, m.PriceScale)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid initial price for %s: %w", m.Name, err)
		}
		if tick <= 0 {
			return nil, nil, fmt.Errorf("initial price must be > 0: %s", m.Name)
		}

		spec := schema.MarketSpec{
			Name:        m.Name,
			Base:        base,
			Quote:       quote,
			TickSpacing: m.TickSpacing,
			PriceScale:  m.PriceScale,
			InitialTick: tick,
		}
		id, err := reg.AddMarket(spec)
		if err != nil {
			return nil, nil, err
		}
		spec.ID = id

		quoteReserve, ok := schema.MulDiv(m.BaseReserve, schema.Amount(tick), pow10(m.PriceScale))
		if !ok || quoteReserve <= 0 {
			return nil, nil, fmt.Errorf("quote reserve out of range: %s", m.Name)
		}
		boots = append(boots, MarketBoot{
			Spec:         spec,
			BaseReserve:  m.BaseReserve,
			QuoteReserve: quoteReserve,
		})
	}
	return reg, boots, nil
}

func resolveDemoOrder(cfg DemoOrderConfig, reg *schema.Registry) (DemoOrder, error) {
	marketID, spec, err := lookupMarket(reg, cfg.Market)
	if err != nil {
		return DemoOrder{}, err
	}
	direction, err := ParseDirection(cfg.Direction)
	if err != nil {
		return DemoOrder{}, err
	}
	if cfg.Amount <= 0 {
		return DemoOrder{}, fmt.Errorf("order amount must be > 0: %s", cfg.Market)
	}
	tick, err := PriceToTick(cfg.TargetPrice, spec.PriceScale)
	if err != nil {
		return DemoOrder{}, fmt.Errorf("invalid target price for %s: %w", cfg.Market, err)
	}
	return DemoOrder{
		Market:     marketID,
		Owner:      schema.AccountID(cfg.Owner),
		Direction:  direction,
		TargetTick: tick,
		Amount:     cfg.Amount,
	}, nil
}

func resolveDemoSwap(cfg DemoSwapConfig, reg *schema.Registry) (DemoSwap, error) {
	marketID, _, err := lookupMarket(reg, cfg.Market)
	if err != nil {
		return DemoSwap{}, err
	}
	direction, err := ParseDirection(cfg.Direction)
	if err != nil {
		return DemoSwap{}, err
	}
	if cfg.AmountIn <= 0 {
		return DemoSwap{}, fmt.Errorf("swap amount must be > 0: %s", cfg.Market)
	}
	return DemoSwap{
		Market:    marketID,
		Trader:    schema.AccountID(cfg.Trader),
		Direction: direction,
		AmountIn:  cfg.AmountIn,
	}, nil
}

func lookupMarket(reg *schema.Registry, name string) (schema.MarketID, schema.MarketSpec, error) {
	if name == "" {
		return 0, schema.MarketSpec{}, fmt.Errorf("market name is empty")
	}
	id, ok := reg.MarketIDByName(name)
	if !ok {
		return 0, schema.MarketSpec{}, fmt.Errorf("market not found: %s", name)
	}
	spec, _ := reg.Market(id)
	return id, spec, nil
}

// ParseDirection resolves the config spelling of an order side.
func ParseDirection(s string) (schema.Direction, error) {
	switch s {
	case "sellBase":
		return schema.DirectionSellBase, nil
	case "sellQuote":
		return schema.DirectionSellQuote, nil
	default:
		return schema.DirectionUnknown, fmt.Errorf("unknown direction: %q", s)
	}
}

// PriceToTick converts a decimal price to its scaled integer tick,
// truncating fraction digits beyond the scale.
func PriceToTick(price decimal.Decimal, scale schema.Scale) (schema.Tick, error) {
	s := strings.TrimSpace(price.String())
	if s == "" {
		return 0, fmt.Errorf("price is empty")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("price must not be negative: %s", s)
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return 0, fmt.Errorf("malformed price: %s", s)
	}

	if len(fracPart) > int(scale) {
		fracPart = fracPart[:scale]
	}
	for len(fracPart) < int(scale) {
		fracPart += "0"
	}

	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(combined, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("price out of tick range: %s", s)
	}
	return schema.Tick(value), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func pow10(scale schema.Scale) schema.Amount {
	out := schema.Amount(1)
	for i := schema.Scale(0); i < scale; i++ {
		out *= 10
	}
	return out
}
