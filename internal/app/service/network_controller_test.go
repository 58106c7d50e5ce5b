package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Frankramos181422/metamask-extension/internal/app/port"
	"github.com/Frankramos181422/metamask-extension/internal/app/service"
	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/events"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/messenger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	blockWithBaseFee    = `{"number":"0x1","baseFeePerGas":"0x1"}`
	blockWithoutBaseFee = `{"number":"0x1"}`
)

// fakeProvider answers JSON-RPC requests through a swappable handle func.
type fakeProvider struct {
	mu     sync.Mutex
	handle func(method string, params []any) (json.RawMessage, error)
}

func (p *fakeProvider) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	return h(method, params)
}

func stubHandle(netVersion, blockJSON string) func(string, []any) (json.RawMessage, error) {
	return func(method string, _ []any) (json.RawMessage, error) {
		switch method {
		case "net_version":
			return json.RawMessage(`"` + netVersion + `"`), nil
		case "eth_getBlockByNumber":
			return json.RawMessage(blockJSON), nil
		case "eth_blockNumber":
			return json.RawMessage(`"0x1"`), nil
		}
		return nil, fmt.Errorf("unexpected method %s", method)
	}
}

func failingHandle(err error) func(string, []any) (json.RawMessage, error) {
	return func(string, []any) (json.RawMessage, error) {
		return nil, err
	}
}

// fakeBlockTracker satisfies port.BlockTracker without any polling.
type fakeBlockTracker struct {
	emitter   *events.Emitter
	mu        sync.Mutex
	destroyed bool
}

func newFakeBlockTracker() *fakeBlockTracker {
	return &fakeBlockTracker{emitter: events.New()}
}

func (f *fakeBlockTracker) On(event string, fn events.Listener) (off func()) {
	return f.emitter.On(event, fn)
}

func (f *fakeBlockTracker) Once(event string, fn events.Listener) (off func()) {
	return f.emitter.Once(event, fn)
}

func (f *fakeBlockTracker) LatestBlock(context.Context) (string, error) {
	return "0x1", nil
}

func (f *fakeBlockTracker) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	return nil
}

func (f *fakeBlockTracker) isDestroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// fakeFactory records specs and hands out fake pairs.
type fakeFactory struct {
	mu       sync.Mutex
	build    func(spec port.NetworkClientSpec) (port.Provider, port.BlockTracker, error)
	specs    []port.NetworkClientSpec
	trackers []*fakeBlockTracker
}

func (f *fakeFactory) CreateNetworkClient(spec port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
	f.mu.Lock()
	build := f.build
	f.mu.Unlock()

	var provider port.Provider
	var tracker port.BlockTracker
	var err error
	if build != nil {
		provider, tracker, err = build(spec)
	} else {
		provider = &fakeProvider{handle: stubHandle("1", blockWithBaseFee)}
		tracker = newFakeBlockTracker()
	}
	if err != nil {
		return nil, nil, err
	}

	f.mu.Lock()
	f.specs = append(f.specs, spec)
	if ft, ok := tracker.(*fakeBlockTracker); ok {
		f.trackers = append(f.trackers, ft)
	}
	f.mu.Unlock()
	return provider, tracker, nil
}

func (f *fakeFactory) setBuild(build func(spec port.NetworkClientSpec) (port.Provider, port.BlockTracker, error)) {
	f.mu.Lock()
	f.build = build
	f.mu.Unlock()
}

func (f *fakeFactory) lastTracker() *fakeBlockTracker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.trackers) == 0 {
		return nil
	}
	return f.trackers[len(f.trackers)-1]
}

// eventRecorder captures the controller's published events in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func newEventRecorder(bus *messenger.Bus) *eventRecorder {
	rec := &eventRecorder{}
	for _, name := range []string{
		service.EventNetworkWillChange,
		service.EventNetworkDidChange,
		service.EventInfuraIsBlocked,
		service.EventInfuraIsUnblocked,
	} {
		event := name
		bus.Subscribe(service.Namespace+":"+event, func() {
			rec.mu.Lock()
			rec.events = append(rec.events, event)
			rec.mu.Unlock()
		})
	}
	return rec
}

func (r *eventRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) contains(event string) bool {
	for _, e := range r.snapshot() {
		if e == event {
			return true
		}
	}
	return false
}

// sinkRecorder captures analytics events.
type sinkRecorder struct {
	mu     sync.Mutex
	events []entity.MetricsEvent
}

func (s *sinkRecorder) record(event entity.MetricsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type harness struct {
	bus        *messenger.Bus
	factory    *fakeFactory
	sink       *sinkRecorder
	recorder   *eventRecorder
	controller *service.NetworkController
}

func newHarness(t *testing.T, override ...func(*service.Options)) *harness {
	t.Helper()
	h := &harness{
		bus:     messenger.New(zap.NewNop()),
		factory: &fakeFactory{},
		sink:    &sinkRecorder{},
	}
	opts := service.Options{
		Messenger:       h.bus.Restrict(service.Namespace),
		InfuraProjectID: "K",
		TrackEvent:      h.sink.record,
		Factory:         h.factory,
		Environment:     service.EnvProduction,
	}
	for _, f := range override {
		f(&opts)
	}
	ctrl, err := service.NewNetworkController(opts)
	require.NoError(t, err)
	h.controller = ctrl
	h.recorder = newEventRecorder(h.bus)
	return h
}

// recordNetworkIDs subscribes to the composed store and collects every value
// the networkId slot takes on.
func (h *harness) recordNetworkIDs() func() []string {
	var mu sync.Mutex
	var seen []string
	h.controller.Store().Subscribe(func(state map[string]any) {
		if id, ok := state["networkId"].(*entity.NetworkID); ok && id != nil {
			mu.Lock()
			seen = append(seen, string(*id))
			mu.Unlock()
		}
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		out := make([]string, len(seen))
		copy(out, seen)
		return out
	}
}

func TestConstructorRejectsEmptyProjectID(t *testing.T) {
	bus := messenger.New(zap.NewNop())
	_, err := service.NewNetworkController(service.Options{
		Messenger:  bus.Restrict(service.Namespace),
		TrackEvent: func(entity.MetricsEvent) {},
		Factory:    &fakeFactory{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Infura project ID")

	_, err = service.NewNetworkController(service.Options{
		Messenger:       bus.Restrict(service.Namespace),
		InfuraProjectID: "   ",
		TrackEvent:      func(entity.MetricsEvent) {},
		Factory:         &fakeFactory{},
	})
	require.Error(t, err)
}

func TestDefaultProviderPerEnvironment(t *testing.T) {
	prod := newHarness(t)
	assert.Equal(t, entity.ProviderTypeMainnet, prod.controller.GetProviderConfig().Type)

	dev := newHarness(t, func(o *service.Options) { o.Environment = service.EnvDevelopment })
	assert.Equal(t, entity.ProviderTypeGoerli, dev.controller.GetProviderConfig().Type)

	integ := newHarness(t, func(o *service.Options) { o.InIntegrationTest = true })
	cfg := integ.controller.GetProviderConfig()
	assert.Equal(t, entity.ProviderTypeRpc, cfg.Type)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, entity.ChainID("0x539"), cfg.ChainID)
}

func TestPreviousProviderMirrorsProviderAtConstruction(t *testing.T) {
	h := newHarness(t)
	state := h.controller.State()
	assert.Equal(t, state.Provider, state.PreviousProvider)
}

func TestNoNetworkActivityBeforeInitializeProvider(t *testing.T) {
	h := newHarness(t)
	h.factory.mu.Lock()
	created := len(h.factory.specs)
	h.factory.mu.Unlock()
	assert.Zero(t, created)

	p, b := h.controller.GetProviderAndBlockTracker()
	assert.Nil(t, p)
	assert.Nil(t, b)
}

// Scenario: fresh init against a mainnet default.
func TestFreshInitMainnet(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))

	state := h.controller.State()
	require.NotNil(t, state.NetworkID)
	assert.Equal(t, entity.NetworkID("1"), *state.NetworkID)
	assert.Equal(t, entity.NetworkStatusAvailable, state.NetworkStatus)
	supports, ok := state.NetworkDetails.EIPS[entity.EIPFeatureLondon]
	require.True(t, ok)
	assert.True(t, supports)

	// initial provider setup publishes no switch events, only the probe
	// outcome
	assert.Equal(t, []string{service.EventInfuraIsUnblocked}, h.recorder.snapshot())

	// the factory saw the credentialed spec
	h.factory.mu.Lock()
	defer h.factory.mu.Unlock()
	require.Len(t, h.factory.specs, 1)
	assert.Equal(t, port.NetworkClientTypeInfura, h.factory.specs[0].Type)
	assert.Equal(t, entity.ProviderTypeMainnet, h.factory.specs[0].Network)
	assert.Equal(t, "K", h.factory.specs[0].APIKey)
}

func TestInitializeProviderIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	p1, b1 := h.controller.GetProviderAndBlockTracker()

	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	p2, b2 := h.controller.GetProviderAndBlockTracker()

	assert.Same(t, p1, p2)
	assert.Same(t, b1, b2)
	assert.Equal(t, entity.NetworkStatusAvailable, h.controller.State().NetworkStatus)
}

// Scenario: upsert with activation mints one id and switches to the custom
// endpoint.
func TestUpsertNetworkConfigurationSetActive(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))

	id, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL:  "https://x/",
		ChainID: "0x5",
		Ticker:  "T",
	}, service.UpsertOptions{SetActive: true, Referrer: "metamask", Source: "ui"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, 1, h.sink.count())
	h.sink.mu.Lock()
	tracked := h.sink.events[0]
	h.sink.mu.Unlock()
	assert.Equal(t, entity.EventCustomNetworkAdded, tracked.Event)
	assert.Equal(t, entity.MetricsCategoryNetwork, tracked.Category)
	assert.Equal(t, "metamask", tracked.Referrer.URL)
	assert.Equal(t, entity.ChainID("0x5"), tracked.Properties["chain_id"])
	assert.Equal(t, "T", tracked.Properties["symbol"])
	assert.Equal(t, "ui", tracked.Properties["source"])

	cfg := h.controller.GetProviderConfig()
	assert.Equal(t, entity.ProviderTypeRpc, cfg.Type)
	assert.Equal(t, "https://x/", cfg.RPCURL)
	assert.Equal(t, id, cfg.ID)
}

func TestUpsertValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://x/", ChainID: "5", Ticker: "T",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	assert.Error(t, err, "bad chain id")

	_, err = h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "nope", ChainID: "0x5", Ticker: "T",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	assert.Error(t, err, "bad URL")

	_, err = h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://x/", ChainID: "0x5", Ticker: "",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	assert.Error(t, err, "missing ticker")

	_, err = h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://x/", ChainID: "0x5", Ticker: "T",
	}, service.UpsertOptions{Source: "ui"})
	assert.Error(t, err, "missing referrer")

	assert.Empty(t, h.controller.GetNetworkConfigurations())
	assert.Zero(t, h.sink.count())
}

// Scenario: upsert is idempotent on case-insensitive RPC URL.
func TestUpsertIdempotentOnRPCURL(t *testing.T) {
	h := newHarness(t)

	id1, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://Foo/", ChainID: "0x5", Ticker: "T",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	require.NoError(t, err)

	id2, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://foo/", ChainID: "0x5", Ticker: "T2",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, h.controller.GetNetworkConfigurations(), 1)
	assert.Equal(t, 1, h.sink.count())
	// the second call updated the stored record
	assert.Equal(t, "T2", h.controller.GetNetworkConfigurations()[id1].Ticker)
}

func TestRemoveNetworkConfiguration(t *testing.T) {
	h := newHarness(t)
	id, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://x/", ChainID: "0x5", Ticker: "T",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	require.NoError(t, err)

	h.controller.RemoveNetworkConfiguration(id)
	assert.Empty(t, h.controller.GetNetworkConfigurations())

	// removing an absent id is a no-op
	h.controller.RemoveNetworkConfiguration("missing")
}

func TestSetActiveNetworkUnknownID(t *testing.T) {
	h := newHarness(t)
	_, err := h.controller.SetActiveNetwork("missing")
	require.Error(t, err)
}

func TestSetProviderTypeRejectsRpcAndUnknown(t *testing.T) {
	h := newHarness(t)
	require.Error(t, h.controller.SetProviderType(entity.ProviderTypeRpc))
	require.Error(t, h.controller.SetProviderType(entity.ProviderType("bogus")))
}

func TestSwitchPublishesOrderedEvents(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	require.NoError(t, h.controller.SetProviderType(entity.ProviderTypeGoerli))

	require.Eventually(t, func() bool {
		evts := h.recorder.snapshot()
		return len(evts) >= 4
	}, time.Second, 5*time.Millisecond)

	evts := h.recorder.snapshot()
	// initial probe first, then the ordered switch sequence
	assert.Equal(t, service.EventInfuraIsUnblocked, evts[0])
	assert.Equal(t, service.EventNetworkWillChange, evts[1])
	assert.Equal(t, service.EventNetworkDidChange, evts[2])
	assert.Equal(t, service.EventInfuraIsUnblocked, evts[3])

	cfg := h.controller.GetProviderConfig()
	assert.Equal(t, entity.ProviderTypeGoerli, cfg.Type)
	assert.Equal(t, entity.ChainID("0x5"), cfg.ChainID)
	assert.Equal(t, "GoerliETH", cfg.Ticker)
}

func TestProxyIdentityStableAcrossSwitches(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	p1, b1 := h.controller.GetProviderAndBlockTracker()
	require.NotNil(t, p1)
	require.NotNil(t, b1)

	require.NoError(t, h.controller.SetProviderType(entity.ProviderTypeSepolia))
	require.NoError(t, h.controller.ResetConnection())

	p2, b2 := h.controller.GetProviderAndBlockTracker()
	assert.Same(t, p1, p2)
	assert.Same(t, b1, b2)
}

func TestBlockTrackerListenerSurvivesSwitch(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	_, trackerProxy := h.controller.GetProviderAndBlockTracker()

	var mu sync.Mutex
	var got []any
	trackerProxy.On("latest", func(args ...any) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, args[0])
	})

	oldTracker := h.factory.lastTracker()
	require.NoError(t, h.controller.SetProviderType(entity.ProviderTypeGoerli))
	newTracker := h.factory.lastTracker()
	require.NotSame(t, oldTracker, newTracker)

	// the old target no longer reaches the subscriber, the new one does
	oldTracker.emitter.Emit("latest", "stale")
	newTracker.emitter.Emit("latest", "0x2a")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"0x2a"}, got)
}

func TestSupersededTrackerIsStopped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	oldTracker := h.factory.lastTracker()

	require.NoError(t, h.controller.SetProviderType(entity.ProviderTypeGoerli))
	require.Eventually(t, oldTracker.isDestroyed, time.Second, 5*time.Millisecond)
}

// Scenario: a switch during an in-flight probe discards the stale results.
func TestSwitchDuringProbeDiscardsStaleResults(t *testing.T) {
	h := newHarness(t)

	gate := make(chan struct{})
	netVersionStarted := make(chan struct{}, 1)

	slowProvider := &fakeProvider{handle: func(method string, _ []any) (json.RawMessage, error) {
		switch method {
		case "net_version":
			select {
			case netVersionStarted <- struct{}{}:
			default:
			}
			<-gate
			return json.RawMessage(`"1"`), nil
		case "eth_getBlockByNumber":
			return json.RawMessage(blockWithBaseFee), nil
		}
		return nil, fmt.Errorf("unexpected method %s", method)
	}}

	first := true
	h.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		if first {
			first = false
			return slowProvider, newFakeBlockTracker(), nil
		}
		return &fakeProvider{handle: stubHandle("5", blockWithoutBaseFee)}, newFakeBlockTracker(), nil
	})

	networkIDs := h.recordNetworkIDs()

	initDone := make(chan struct{})
	go func() {
		defer close(initDone)
		_ = h.controller.InitializeProvider(context.Background())
	}()
	<-netVersionStarted

	// user switches networks while the first probe is awaiting net_version
	require.NoError(t, h.controller.SetProviderType(entity.ProviderTypeGoerli))
	close(gate)
	<-initDone

	require.Eventually(t, func() bool {
		state := h.controller.State()
		return state.NetworkID != nil && *state.NetworkID == "5"
	}, time.Second, 5*time.Millisecond)

	state := h.controller.State()
	assert.Equal(t, entity.NetworkStatusAvailable, state.NetworkStatus)
	supports, ok := state.NetworkDetails.EIPS[entity.EIPFeatureLondon]
	require.True(t, ok)
	assert.False(t, supports)

	// the stale probe's network id ("1") never reached the store
	assert.NotContains(t, networkIDs(), "1")
}

// Scenario: geo-blocked first-party endpoint.
func TestBlockedClassificationOnBuiltIn(t *testing.T) {
	h := newHarness(t)
	h.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		return &fakeProvider{handle: failingHandle(&entity.RPCError{
			Code:    -32500,
			Message: `{"error":"countryBlocked"}`,
		})}, newFakeBlockTracker(), nil
	})

	require.NoError(t, h.controller.InitializeProvider(context.Background()))

	state := h.controller.State()
	assert.Equal(t, entity.NetworkStatusBlocked, state.NetworkStatus)
	assert.Nil(t, state.NetworkID)
	_, probed := state.NetworkDetails.EIPS[entity.EIPFeatureLondon]
	assert.False(t, probed)

	assert.True(t, h.recorder.contains(service.EventInfuraIsBlocked))
	assert.False(t, h.recorder.contains(service.EventInfuraIsUnblocked))
}

func TestBlockedClassificationOnCustomStillUnblocks(t *testing.T) {
	h := newHarness(t, func(o *service.Options) { o.InIntegrationTest = true })
	h.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		return &fakeProvider{handle: failingHandle(&entity.RPCError{
			Code:    -32500,
			Message: `{"error":"countryBlocked"}`,
		})}, newFakeBlockTracker(), nil
	})

	require.NoError(t, h.controller.InitializeProvider(context.Background()))

	assert.Equal(t, entity.NetworkStatusBlocked, h.controller.State().NetworkStatus)
	// a custom endpoint must clear any latched blocked state
	assert.True(t, h.recorder.contains(service.EventInfuraIsUnblocked))
	assert.False(t, h.recorder.contains(service.EventInfuraIsBlocked))
}

func TestUnknownAndUnavailableClassification(t *testing.T) {
	internal := newHarness(t)
	internal.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		return &fakeProvider{handle: failingHandle(&entity.RPCError{
			Code: entity.RPCErrCodeInternal, Message: "internal error",
		})}, newFakeBlockTracker(), nil
	})
	require.NoError(t, internal.controller.InitializeProvider(context.Background()))
	assert.Equal(t, entity.NetworkStatusUnknown, internal.controller.State().NetworkStatus)
	assert.False(t, internal.recorder.contains(service.EventInfuraIsUnblocked))

	down := newHarness(t)
	down.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		return &fakeProvider{handle: failingHandle(fmt.Errorf("connection refused"))}, newFakeBlockTracker(), nil
	})
	require.NoError(t, down.controller.InitializeProvider(context.Background()))
	assert.Equal(t, entity.NetworkStatusUnavailable, down.controller.State().NetworkStatus)
}

func TestNonNumericNetworkIDDegradesToUnknown(t *testing.T) {
	h := newHarness(t)
	h.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		return &fakeProvider{handle: stubHandle("0x1", blockWithBaseFee)}, newFakeBlockTracker(), nil
	})

	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	state := h.controller.State()
	assert.Equal(t, entity.NetworkStatusUnknown, state.NetworkStatus)
	assert.Nil(t, state.NetworkID)
}

// Scenario: rollback restores the pre-switch configuration and does not
// snapshot the rollback itself.
func TestRollbackToPreviousProvider(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	initialCfg := h.controller.GetProviderConfig()

	id, err := h.controller.UpsertNetworkConfiguration(entity.NetworkConfiguration{
		RPCURL: "https://x/", ChainID: "0x5", Ticker: "T",
	}, service.UpsertOptions{Referrer: "metamask", Source: "ui"})
	require.NoError(t, err)
	_, err = h.controller.SetActiveNetwork(id)
	require.NoError(t, err)

	customCfg := h.controller.GetProviderConfig()
	require.Equal(t, entity.ProviderTypeRpc, customCfg.Type)

	require.NoError(t, h.controller.RollbackToPreviousProvider())

	state := h.controller.State()
	assert.Equal(t, entity.ProviderTypeMainnet, state.Provider.Type)
	// the rollback does not snapshot, so the previous slot still holds the
	// configuration that was active before the switch to custom
	assert.Equal(t, initialCfg, state.PreviousProvider)

	// a second rollback lands on the previous-previous, not back on custom
	require.NoError(t, h.controller.RollbackToPreviousProvider())
	assert.Equal(t, entity.ProviderTypeMainnet, h.controller.State().Provider.Type)
}

func TestGetEIP1559Compatibility(t *testing.T) {
	h := newHarness(t)

	// documented wart: no provider reports false without touching state
	supports, err := h.controller.GetEIP1559Compatibility(context.Background())
	require.NoError(t, err)
	assert.False(t, supports)
	_, probed := h.controller.State().NetworkDetails.EIPS[entity.EIPFeatureLondon]
	assert.False(t, probed)

	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	supports, err = h.controller.GetEIP1559Compatibility(context.Background())
	require.NoError(t, err)
	assert.True(t, supports)
}

func TestGetEIP1559CompatibilityMemoizes(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	blockFetches := 0
	base := stubHandle("1", blockWithBaseFee)
	h.factory.setBuild(func(port.NetworkClientSpec) (port.Provider, port.BlockTracker, error) {
		return &fakeProvider{handle: func(method string, params []any) (json.RawMessage, error) {
			if method == "eth_getBlockByNumber" {
				mu.Lock()
				blockFetches++
				mu.Unlock()
			}
			return base(method, params)
		}}, newFakeBlockTracker(), nil
	})

	require.NoError(t, h.controller.InitializeProvider(context.Background()))
	mu.Lock()
	afterProbe := blockFetches
	mu.Unlock()

	supports, err := h.controller.GetEIP1559Compatibility(context.Background())
	require.NoError(t, err)
	assert.True(t, supports)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, afterProbe, blockFetches, "memoized answer must not refetch the block")
}

func TestRestoredStateIsUsed(t *testing.T) {
	restored := &service.State{
		Provider: entity.ProviderConfiguration{
			Type:    entity.ProviderTypeSepolia,
			ChainID: "0xaa36a7",
			Ticker:  "SepoliaETH",
		},
		NetworkConfigurations: entity.NetworkConfigurations{
			"id-1": {ID: "id-1", RPCURL: "https://x/", ChainID: "0x5", Ticker: "T"},
		},
	}
	h := newHarness(t, func(o *service.Options) { o.State = restored })

	state := h.controller.State()
	assert.Equal(t, entity.ProviderTypeSepolia, state.Provider.Type)
	assert.Equal(t, state.Provider, state.PreviousProvider)
	assert.Equal(t, entity.NetworkStatusUnknown, state.NetworkStatus)
	assert.Len(t, state.NetworkConfigurations, 1)
}

func TestDestroyStopsTracker(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.InitializeProvider(context.Background()))

	require.NoError(t, h.controller.Destroy(context.Background()))
	assert.True(t, h.factory.lastTracker().isDestroyed())
}

func TestDestroyWithoutInitializeIsANoOp(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.Destroy(context.Background()))
}
