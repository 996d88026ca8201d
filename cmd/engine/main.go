package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sync"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/claims"
	"main/internal/engine"
	"main/internal/fees"
	"main/internal/journal"
	"main/internal/market"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/points"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/store"
)

const (
	custodyAccount = schema.AccountID(1)
	venueAccount   = schema.AccountID(2)
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	journalDir := flag.String("journal-dir", "", "Journal directory (overrides config)")
	snapshotPath := flag.String("snapshot-path", "", "State snapshot output (overrides config)")
	recoverEnabled := flag.Bool("recover", false, "Rebuild state from snapshot + journal before serving")
	recoverNoChecksum := flag.Bool("recover-no-checksum", false, "Disable checksum validation for recovery")
	pyroscopeServer := flag.String("pyroscope-server", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	ctx := context.Background()

	if *pyroscopeServer != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "order/engine",
			ServerAddress:   *pyroscopeServer,
			Tags: map[string]string{
				"env": "local",
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	dir := loaded.Journal.Dir
	if *journalDir != "" {
		dir = *journalDir
	}
	if dir == "" {
		dir = "testdata/journal"
	}
	snapshotOut := loaded.Snapshot.Path
	if *snapshotPath != "" {
		snapshotOut = *snapshotPath
	}
	if snapshotOut == "" {
		snapshotOut = filepath.Join(dir, "state.json")
	}

	var recovered *state.RecoverResult
	if *recoverEnabled {
		result, err := state.Recover(ctx, state.RecoverConfig{
			JournalDir:      dir,
			SnapshotPath:    snapshotIfExists(snapshotOut),
			FilePrefix:      loaded.Journal.FilePrefix,
			DisableChecksum: *recoverNoChecksum,
		})
		if err != nil {
			log.Fatalf("recovery failed: %v", err)
		}
		recovered = &result
		logs.Infof("recovered state: orders=%d last_seq=%d", result.Book.Len(), result.LastSeq)
	}

	if err := run(ctx, loaded, dir, snapshotOut, recovered); err != nil {
		log.Fatalf("engine failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded, journalDir, snapshotOut string, recovered *state.RecoverResult) error {
	ledger := market.NewLedger()
	custody := market.NewCustody(ledger, custodyAccount)
	metrics := obs.NewMetrics()

	var venueOpts []market.VenueOption
	var feeTracker *fees.Tracker
	if loaded.Fees.Enabled {
		feeTracker = fees.NewTracker(schema.Amount(loaded.Fees.BaseFeeBps))
		// The cost sampler feeds the fee tracker the engine's own cycle
		// latency, so fees rise when execution is getting expensive.
		sampler := func() int64 {
			return int64(metrics.Snapshot().CycleLatency.Avg)
		}
		venueOpts = append(venueOpts, market.WithFees(feeTracker, sampler))
	}
	var issuer *points.Issuer
	if loaded.Points.Enabled {
		issuer = points.NewIssuer(loaded.Points.RateBps)
		venueOpts = append(venueOpts, market.WithPoints(issuer))
	}
	venue := market.NewVenue(ledger, venueAccount, venueOpts...)

	writer, err := journal.NewWriter(journal.Config{
		Dir:        journalDir,
		FilePrefix: loaded.Journal.FilePrefix,
	})
	if err != nil {
		return err
	}
	if err := writer.Start(ctx); err != nil {
		return err
	}

	queue := bus.NewQueue(1024)
	var eventStore *store.Store
	if loaded.Store.Enabled {
		client, err := store.NewClient(store.Option{
			Host:     loaded.Store.Host,
			Port:     loaded.Store.Port,
			User:     loaded.Store.User,
			Password: loaded.Store.Password,
			Database: loaded.Store.Database,
			SSLMode:  loaded.Store.SSLMode,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		eventStore = store.New(client)
		if err := eventStore.Migrate(); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case e, ok := <-queue.C():
				if !ok {
					return
				}
				if eventStore != nil {
					if err := eventStore.Apply(e.Header, e.Payload); err != nil {
						logs.Errorf("store apply failed, err: %+v", err)
					}
				}
			}
		}
	}()

	e := engine.New(
		engine.Config{MaxFillsPerCycle: loaded.Engine.MaxFillsPerCycle},
		venue,
		custody,
		custodyAccount,
		engine.WithMetrics(metrics),
		engine.WithSink(teeSink{journal: writer, queue: queue}),
	)
	venue.SetNotify(e.OnTrade)

	for _, boot := range loaded.Markets {
		if err := venue.AddPool(boot.Spec, boot.BaseReserve, boot.QuoteReserve); err != nil {
			return err
		}
		if err := e.TrackMarket(boot.Spec); err != nil {
			return err
		}
	}
	if recovered != nil {
		restoreRecovered(e, ledger, loaded, recovered)
	}

	if err := runDemo(e, venue, ledger, loaded); err != nil {
		return err
	}

	logs.Info("demo complete, serving until shutdown")
	select {
	case <-sys.Shutdown():
	case <-ctx.Done():
	}

	queue.Close()
	wg.Wait()
	if err := writer.Close(); err != nil {
		return err
	}

	ticks := make(map[schema.MarketID]schema.Tick, len(loaded.Markets))
	for _, boot := range loaded.Markets {
		if tick, ok := e.LastObservedTick(boot.Spec.ID); ok {
			ticks[boot.Spec.ID] = tick
		}
	}
	if err := state.Write(snapshotOut, state.Capture(e.Book(), e.Claims(), ticks, e.Seq())); err != nil {
		return err
	}

	snap := metrics.Snapshot()
	logs.Infof("metrics: placed=%d canceled=%d fills=%d cycles=%d aborts=%d deferrals=%d self_triggers=%d redeems=%d cycle_latency=%+v",
		snap.OrdersPlaced, snap.OrdersCanceled, snap.Fills, snap.Cycles,
		snap.CycleAborts, snap.CycleDeferrals, snap.SelfTriggers, snap.Redeems, snap.CycleLatency)
	if issuer != nil {
		logs.Infof("points minted: %d", issuer.Supply())
	}
	return nil
}

// restoreRecovered loads replayed state into the engine and re-seeds the
// paper ledger's custody balances to back pending orders and unredeemed
// payouts.
func restoreRecovered(e *engine.Engine, ledger *market.Ledger, loaded ops.Loaded, recovered *state.RecoverResult) {
	e.Book().Restore(recovered.Book.Snapshot())
	e.Claims().Restore(recovered.Claims.Snapshot())
	e.SetSeq(recovered.LastSeq)
	for market, tick := range recovered.LastTicks {
		e.RestoreLastTick(market, tick)
	}

	specs := make(map[schema.MarketID]schema.MarketSpec, len(loaded.Markets))
	for _, boot := range loaded.Markets {
		specs[boot.Spec.ID] = boot.Spec
	}
	for _, entry := range recovered.Book.Entries() {
		spec, ok := specs[entry.Key.Market]
		if !ok {
			continue
		}
		ledger.Mint(spec.InputAsset(entry.Key.Direction), custodyAccount, entry.Amount)
	}
	for key, amount := range recovered.Payouts {
		spec, ok := specs[key.Market]
		if !ok || amount <= 0 {
			continue
		}
		ledger.Mint(spec.OutputAsset(key.Direction), custodyAccount, amount)
	}
}

func runDemo(e *engine.Engine, venue *market.Venue, ledger *market.Ledger, loaded ops.Loaded) error {
	specs := make(map[schema.MarketID]schema.MarketSpec, len(loaded.Markets))
	for _, boot := range loaded.Markets {
		specs[boot.Spec.ID] = boot.Spec
	}

	for _, order := range loaded.Orders {
		spec, ok := specs[order.Market]
		if !ok {
			continue
		}
		ledger.Mint(spec.InputAsset(order.Direction), order.Owner, order.Amount)
		level, err := e.PlaceOrder(order.Owner, order.Market, order.TargetTick, order.Direction, order.Amount)
		if err != nil {
			return err
		}
		logs.Infof("demo order rests at level %d", level)
	}

	for _, swap := range loaded.Swaps {
		spec, ok := specs[swap.Market]
		if !ok {
			continue
		}
		ledger.Mint(spec.InputAsset(swap.Direction), swap.Trader, swap.AmountIn)
		trader := swap.Trader
		result, err := venue.Swap(swap.Market, trader, swap.Direction, swap.AmountIn, &trader)
		if err != nil {
			return err
		}
		logs.Infof("demo swap filled: out=%d fee=%d tick=%d", result.AmountOut, result.Fee, result.NewTick)
	}

	for _, order := range loaded.Orders {
		output, err := e.Redeem(order.Owner, order.Market, order.TargetTick, order.Direction, order.Amount)
		if err != nil {
			if errors.Is(err, claims.ErrNothingToClaim) {
				logs.Info("demo order not filled, nothing to redeem")
				continue
			}
			if errors.Is(err, claims.ErrInsufficientShare) {
				continue
			}
			return err
		}
		logs.Infof("demo redeem paid out %d", output)
	}
	return nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

// defaultLoaded is the built-in scenario: one ETH/USDC market opening at
// 100.00 with a take-profit order at 110.00 and a swap big enough to push
// the price through it.
func defaultLoaded() (ops.Loaded, error) {
	reg := schema.NewRegistry()
	eth, err := reg.AddAsset("ETH")
	if err != nil {
		return ops.Loaded{}, err
	}
	usdc, err := reg.AddAsset("USDC")
	if err != nil {
		return ops.Loaded{}, err
	}
	spec := schema.MarketSpec{
		Name:        "ETH-USDC",
		Base:        eth,
		Quote:       usdc,
		TickSpacing: 100,
		PriceScale:  2,
		InitialTick: 10000,
	}
	id, err := reg.AddMarket(spec)
	if err != nil {
		return ops.Loaded{}, err
	}
	spec.ID = id

	return ops.Loaded{
		Registry: reg,
		Markets: []ops.MarketBoot{
			{Spec: spec, BaseReserve: 1000, QuoteReserve: 100000},
		},
		Fees:   ops.FeesConfig{Enabled: true, BaseFeeBps: 30},
		Points: ops.PointsConfig{Enabled: true, RateBps: 2000},
		Orders: []ops.DemoOrder{
			{Market: id, Owner: 11, Direction: schema.DirectionSellBase, TargetTick: 11000, Amount: 50},
		},
		Swaps: []ops.DemoSwap{
			{Market: id, Trader: 22, Direction: schema.DirectionSellQuote, AmountIn: 20000},
		},
	}, nil
}

func snapshotIfExists(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// teeSink forwards engine events to the durable journal and mirrors them
// onto the bus for offline consumers.
type teeSink struct {
	journal *journal.Writer
	queue   *bus.Queue
}

func (s teeSink) Record(header schema.EventHeader, payload []byte) error {
	if err := s.queue.TryPublish(bus.Event{Header: header, Payload: payload}); err != nil {
		if !errors.Is(err, bus.ErrQueueClosed) {
			logs.Errorf("bus publish failed, err: %+v", err)
		}
	}
	return s.journal.Record(header, payload)
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
