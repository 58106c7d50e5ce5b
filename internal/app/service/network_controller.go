package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Frankramos181422/metamask-extension/internal/app/port"
	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"
	networkdefinition "github.com/Frankramos181422/metamask-extension/internal/infrastructure/network/definition"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/metrics"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/store"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Namespace prefixes every event the controller publishes on a shared bus.
const Namespace = "NetworkController"

// Events published by the controller. None carry a payload.
const (
	EventNetworkWillChange = "networkWillChange"
	EventNetworkDidChange  = "networkDidChange"
	EventInfuraIsBlocked   = "infuraIsBlocked"
	EventInfuraIsUnblocked = "infuraIsUnblocked"
)

// Environment selects the default provider configuration used when no state
// is restored.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
)

// State is the controller's persisted composite state.
type State struct {
	Provider              entity.ProviderConfiguration `json:"provider"`
	PreviousProvider      entity.ProviderConfiguration `json:"previousProviderStore"`
	NetworkID             *entity.NetworkID            `json:"networkId"`
	NetworkStatus         entity.NetworkStatus         `json:"networkStatus"`
	NetworkDetails        entity.NetworkDetails        `json:"networkDetails"`
	NetworkConfigurations entity.NetworkConfigurations `json:"networkConfigurations"`
}

// Options configure a NetworkController.
type Options struct {
	// Messenger is the restricted bus the controller publishes on. Required.
	Messenger port.Messenger

	// State restores a previously persisted composite state.
	State *State

	// InfuraProjectID credentials the hosted first-party endpoints. Required
	// and non-empty.
	InfuraProjectID string

	// TrackEvent is the analytics sink. Required.
	TrackEvent port.TrackEventFunc

	// Factory builds provider/block-tracker pairs. Required.
	Factory port.NetworkClientFactory

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Environment picks the default network when no state is supplied.
	Environment Environment

	// InIntegrationTest points the default provider at a localhost node.
	InIntegrationTest bool
}

// UpsertOptions accompany UpsertNetworkConfiguration.
type UpsertOptions struct {
	// SetActive switches to the upserted network once stored.
	SetActive bool

	// Referrer is the surface that initiated the action. Required.
	Referrer string

	// Source describes how the network entered the wallet. Required.
	Source string
}

// NetworkController maintains the single live connection to a blockchain
// JSON-RPC endpoint, manages its lifecycle across network switches, and
// publishes authoritative status to the rest of the application. It owns the
// child stores, the live provider/block-tracker pair, and the two swappable
// proxies handed to long-lived subscribers.
type NetworkController struct {
	logger     *zap.Logger
	messenger  port.Messenger
	trackEvent port.TrackEventFunc
	factory    port.NetworkClientFactory
	projectID  string

	providerStore              *store.Store[entity.ProviderConfiguration]
	previousProviderStore      *store.Store[entity.ProviderConfiguration]
	networkIDStore             *store.Store[*entity.NetworkID]
	networkStatusStore         *store.Store[entity.NetworkStatus]
	networkDetailsStore        *store.Store[entity.NetworkDetails]
	networkConfigurationsStore *store.Store[entity.NetworkConfigurations]
	composed                   *store.Composed

	// mu guards the live pair and the proxies, and serializes provider
	// installation and derived-state resets. Other store writes (probe
	// results, provider snapshots, the registry) are not taken under it.
	// RPC round-trips never happen under it.
	mu                sync.Mutex
	provider          port.Provider
	blockTracker      port.BlockTracker
	providerProxy     *ProviderProxy
	blockTrackerProxy *BlockTrackerProxy
}

// NewNetworkController constructs a controller. No network activity occurs
// until InitializeProvider is called.
func NewNetworkController(opts Options) (*NetworkController, error) {
	if strings.TrimSpace(opts.InfuraProjectID) == "" {
		return nil, fmt.Errorf("invalid Infura project ID: must be a non-empty string")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("network controller requires a messenger")
	}
	if opts.TrackEvent == nil {
		return nil, fmt.Errorf("network controller requires a trackEvent sink")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("network controller requires a network client factory")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	providerCfg := defaultProviderConfig(opts.Environment, opts.InIntegrationTest)
	var (
		networkID      *entity.NetworkID
		networkStatus  = entity.NetworkStatusUnknown
		networkDetails = entity.NewNetworkDetails()
		configurations = entity.NetworkConfigurations{}
	)
	if opts.State != nil {
		if opts.State.Provider.Type != "" {
			providerCfg = opts.State.Provider
		}
		networkID = opts.State.NetworkID
		if opts.State.NetworkStatus != "" {
			networkStatus = opts.State.NetworkStatus
		}
		if opts.State.NetworkDetails.EIPS != nil {
			networkDetails = opts.State.NetworkDetails
		}
		if opts.State.NetworkConfigurations != nil {
			configurations = opts.State.NetworkConfigurations.Clone()
		}
	}

	c := &NetworkController{
		logger:     log.Named("NetworkController"),
		messenger:  opts.Messenger,
		trackEvent: opts.TrackEvent,
		factory:    opts.Factory,
		projectID:  opts.InfuraProjectID,

		providerStore: store.New(providerCfg, store.WithLogger[entity.ProviderConfiguration](log)),
		// always mirrors the provider at construction; persisted previous
		// values are deliberately not restored
		previousProviderStore: store.New(providerCfg, store.WithLogger[entity.ProviderConfiguration](log)),
		networkIDStore:        store.New(networkID, store.WithLogger[*entity.NetworkID](log)),
		networkStatusStore:    store.New(networkStatus, store.WithLogger[entity.NetworkStatus](log)),
		networkDetailsStore: store.New(networkDetails,
			store.WithLogger[entity.NetworkDetails](log),
			store.WithMerge(func(current, patch entity.NetworkDetails) entity.NetworkDetails {
				return current.Merge(patch)
			})),
		networkConfigurationsStore: store.New(configurations, store.WithLogger[entity.NetworkConfigurations](log)),
	}

	c.composed = store.NewComposed(map[string]store.Child{
		"provider":              c.providerStore,
		"previousProviderStore": c.previousProviderStore,
		"networkId":             c.networkIDStore,
		"networkStatus":         c.networkStatusStore,
		"networkDetails":        c.networkDetailsStore,
		"networkConfigurations": c.networkConfigurationsStore,
	}, log)

	return c, nil
}

func defaultProviderConfig(env Environment, inIntegrationTest bool) entity.ProviderConfiguration {
	if inIntegrationTest {
		return entity.ProviderConfiguration{
			Type:     entity.ProviderTypeRpc,
			ChainID:  "0x539",
			RPCURL:   "http://localhost:8545",
			Ticker:   "ETH",
			Nickname: "Localhost 8545",
		}
	}
	def := networkdefinition.Goerli
	if env == EnvProduction {
		def = networkdefinition.Mainnet
	}
	return entity.ProviderConfiguration{
		Type:    def.Type,
		ChainID: def.ChainID,
		Ticker:  def.Ticker,
	}
}

// Store returns the composed observable the persistence layer subscribes to.
func (c *NetworkController) Store() *store.Composed {
	return c.composed
}

// State returns a snapshot of the composite state.
func (c *NetworkController) State() State {
	return State{
		Provider:              c.providerStore.GetState(),
		PreviousProvider:      c.previousProviderStore.GetState(),
		NetworkID:             c.networkIDStore.GetState(),
		NetworkStatus:         c.networkStatusStore.GetState(),
		NetworkDetails:        c.networkDetailsStore.GetState(),
		NetworkConfigurations: c.networkConfigurationsStore.GetState().Clone(),
	}
}

// GetProviderConfig returns the active provider configuration.
func (c *NetworkController) GetProviderConfig() entity.ProviderConfiguration {
	return c.providerStore.GetState()
}

// GetNetworkConfigurations returns a copy of the custom network registry.
func (c *NetworkController) GetNetworkConfigurations() entity.NetworkConfigurations {
	return c.networkConfigurationsStore.GetState().Clone()
}

// InitializeProvider builds the live provider/block-tracker pair for the
// current configuration, installs the proxies, and probes the network.
// Idempotent: calling twice is equivalent to calling once with the latest
// configuration.
func (c *NetworkController) InitializeProvider(ctx context.Context) error {
	c.mu.Lock()
	cfg := c.providerStore.GetState()
	if err := c.configureProviderLocked(cfg); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.LookupNetwork(ctx)
	return nil
}

// GetProviderAndBlockTracker returns the stable proxies, nil before the
// first InitializeProvider call.
func (c *NetworkController) GetProviderAndBlockTracker() (*ProviderProxy, *BlockTrackerProxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providerProxy, c.blockTrackerProxy
}

// GetEIP1559Compatibility reports whether the active network supports the
// London fee market, probing the latest block on first use and memoizing the
// answer in the network details.
func (c *NetworkController) GetEIP1559Compatibility(ctx context.Context) (bool, error) {
	if supports, ok := c.networkDetailsStore.GetState().EIPS[entity.EIPFeatureLondon]; ok {
		return supports, nil
	}

	c.mu.Lock()
	provider := c.providerProxy
	c.mu.Unlock()
	if provider == nil {
		// historical behavior relied on by callers: report false rather
		// than fail, and leave state untouched
		return false, nil
	}

	block, err := fetchLatestBlock(ctx, provider)
	if err != nil {
		return false, err
	}
	supports := block.SupportsEIP1559()
	c.networkDetailsStore.UpdateState(entity.NetworkDetails{
		EIPS: map[uint64]bool{entity.EIPFeatureLondon: supports},
	})
	return supports, nil
}

// LookupNetwork probes the live network, classifies the outcome, and
// publishes status. If the network changes while the probe is in flight the
// stale results are discarded silently; the switch will have launched a
// fresh probe.
func (c *NetworkController) LookupNetwork(ctx context.Context) {
	c.mu.Lock()
	cfg := c.providerStore.GetState()
	provider := c.providerProxy
	c.mu.Unlock()

	if provider == nil || cfg.ChainID == "" {
		c.logger.Warn("LookupNetwork aborted due to missing provider or chain id",
			zap.String("chainId", string(cfg.ChainID)))
		c.resetNetworkState()
		return
	}
	isBuiltIn := cfg.Type.IsBuiltIn()

	// one-shot staleness flag: flipped by the next NetworkDidChange and
	// inspected once the awaits resolve
	var networkChanged atomic.Bool
	unsubscribe := c.messenger.Subscribe(EventNetworkDidChange, func() {
		networkChanged.Store(true)
	})
	defer unsubscribe()

	networkID, block, probeErr := c.probe(ctx, provider)
	status := c.classifyProbe(networkID, probeErr)

	if networkChanged.Load() {
		// a switch landed mid-probe; a fresh probe is already running
		c.logger.Debug("Discarding stale network probe results",
			zap.String("chainId", string(cfg.ChainID)))
		return
	}

	c.networkStatusStore.PutState(status)
	if status == entity.NetworkStatusAvailable {
		nid := entity.NetworkID(networkID)
		c.networkIDStore.PutState(&nid)
		c.networkDetailsStore.UpdateState(entity.NetworkDetails{
			EIPS: map[uint64]bool{entity.EIPFeatureLondon: block.SupportsEIP1559()},
		})
	} else {
		c.networkIDStore.PutState(nil)
		c.networkDetailsStore.PutState(entity.NewNetworkDetails())
	}
	metrics.ProbeResultsTotal.WithLabelValues(string(status)).Inc()

	// a custom RPC must clear any latched blocked state unconditionally;
	// consumers may still be latched from a prior first-party connection
	switch {
	case !isBuiltIn:
		c.messenger.Publish(EventInfuraIsUnblocked)
	case status == entity.NetworkStatusAvailable:
		c.messenger.Publish(EventInfuraIsUnblocked)
	case status == entity.NetworkStatusBlocked:
		c.messenger.Publish(EventInfuraIsBlocked)
	}
}

// probe issues net_version and eth_getBlockByNumber concurrently.
func (c *NetworkController) probe(ctx context.Context, provider port.Provider) (string, entity.BlockHeader, error) {
	var (
		networkID string
		block     entity.BlockHeader
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := provider.Request(gctx, "net_version")
		if err != nil {
			return err
		}
		if err := jsonCodec.Unmarshal(raw, &networkID); err != nil {
			return fmt.Errorf("failed to decode net_version result: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		latest, err := fetchLatestBlock(gctx, provider)
		if err != nil {
			return err
		}
		block = latest
		return nil
	})
	err := g.Wait()
	return networkID, block, err
}

func fetchLatestBlock(ctx context.Context, provider port.Provider) (entity.BlockHeader, error) {
	raw, err := provider.Request(ctx, "eth_getBlockByNumber", "latest", false)
	if err != nil {
		return entity.BlockHeader{}, err
	}
	var block entity.BlockHeader
	if err := jsonCodec.Unmarshal(raw, &block); err != nil {
		return entity.BlockHeader{}, fmt.Errorf("failed to decode eth_getBlockByNumber result: %w", err)
	}
	return block, nil
}

func (c *NetworkController) classifyProbe(networkID string, probeErr error) entity.NetworkStatus {
	if probeErr == nil {
		if entity.IsDecimalNetworkID(networkID) {
			return entity.NetworkStatusAvailable
		}
		c.logger.Warn("net_version returned a non-numeric network id",
			zap.String("networkId", networkID))
		return entity.NetworkStatusUnknown
	}

	var rpcErr *entity.RPCError
	if errors.As(probeErr, &rpcErr) {
		if isCountryBlockedError(rpcErr) {
			return entity.NetworkStatusBlocked
		}
		if rpcErr.Code == entity.RPCErrCodeInternal {
			return entity.NetworkStatusUnknown
		}
		return entity.NetworkStatusUnavailable
	}
	return entity.NetworkStatusUnavailable
}

// isCountryBlockedError reports whether the error message body JSON-parses
// to an object carrying the geo-block sentinel.
func isCountryBlockedError(rpcErr *entity.RPCError) bool {
	var body struct {
		Error string `json:"error"`
	}
	if err := jsonCodec.Unmarshal([]byte(rpcErr.Message), &body); err != nil {
		return false
	}
	return body.Error == entity.CountryBlockedSentinel
}

// SetActiveNetwork switches to the custom network registered under id and
// returns its RPC URL.
func (c *NetworkController) SetActiveNetwork(id string) (string, error) {
	nc, ok := c.networkConfigurationsStore.GetState()[id]
	if !ok {
		return "", fmt.Errorf("network configuration with id %q does not exist", id)
	}
	c.setProviderConfig(entity.ProviderConfiguration{
		Type:     entity.ProviderTypeRpc,
		ChainID:  nc.ChainID,
		RPCURL:   nc.RPCURL,
		Ticker:   nc.Ticker,
		Nickname: nc.Nickname,
		RPCPrefs: nc.RPCPrefs,
		ID:       nc.ID,
	})
	return nc.RPCURL, nil
}

// SetProviderType switches to the built-in network named by shortname.
// Custom endpoints must go through SetActiveNetwork instead.
func (c *NetworkController) SetProviderType(shortname entity.ProviderType) error {
	if shortname == entity.ProviderTypeRpc {
		return fmt.Errorf("cannot use SetProviderType to activate a custom RPC endpoint; use SetActiveNetwork")
	}
	def, ok := networkdefinition.ByType(shortname)
	if !ok {
		return fmt.Errorf("unknown provider type %q", shortname)
	}
	ticker := def.Ticker
	if ticker == "" {
		ticker = "ETH"
	}
	c.setProviderConfig(entity.ProviderConfiguration{
		Type:     def.Type,
		ChainID:  def.ChainID,
		Ticker:   ticker,
		RPCPrefs: &entity.RPCPrefs{BlockExplorerURL: def.BlockExplorerURL},
	})
	return nil
}

// ResetConnection re-applies the current configuration, forcing a fresh
// provider/block-tracker pair and a fresh probe.
func (c *NetworkController) ResetConnection() error {
	return c.switchNetwork(c.providerStore.GetState())
}

// RollbackToPreviousProvider switches back to the previously active
// configuration. The current configuration is not snapshotted first, so two
// consecutive rollbacks do not oscillate.
func (c *NetworkController) RollbackToPreviousProvider() error {
	cfg := c.previousProviderStore.GetState()
	c.providerStore.PutState(cfg)
	return c.switchNetwork(cfg)
}

// setProviderConfig snapshots the current configuration, installs the new
// one, and runs the switch sequence.
func (c *NetworkController) setProviderConfig(cfg entity.ProviderConfiguration) {
	c.previousProviderStore.PutState(c.providerStore.GetState())
	c.providerStore.PutState(cfg)
	if err := c.switchNetwork(cfg); err != nil {
		c.logger.Error("Failed to switch network", zap.Error(err),
			zap.String("type", string(cfg.Type)),
			zap.String("chainId", string(cfg.ChainID)))
	}
}

// switchNetwork tears down derived state, installs a fresh client pair
// behind the proxies, and launches the post-switch probe.
func (c *NetworkController) switchNetwork(cfg entity.ProviderConfiguration) error {
	c.messenger.Publish(EventNetworkWillChange)

	c.mu.Lock()
	c.resetNetworkStateLocked()
	err := c.configureProviderLocked(cfg)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.messenger.Publish(EventNetworkDidChange)
	metrics.NetworkSwitchesTotal.WithLabelValues(string(cfg.Type)).Inc()

	go c.LookupNetwork(context.Background())
	return nil
}

func (c *NetworkController) resetNetworkState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetNetworkStateLocked()
}

func (c *NetworkController) resetNetworkStateLocked() {
	c.networkIDStore.PutState(nil)
	c.networkStatusStore.PutState(entity.NetworkStatusUnknown)
	c.networkDetailsStore.PutState(entity.NewNetworkDetails())
}

// configureProviderLocked builds the client pair for cfg and installs it
// behind the proxies. Callers hold c.mu.
func (c *NetworkController) configureProviderLocked(cfg entity.ProviderConfiguration) error {
	spec, err := c.clientSpecFor(cfg)
	if err != nil {
		return err
	}
	provider, blockTracker, err := c.factory.CreateNetworkClient(spec)
	if err != nil {
		return fmt.Errorf("failed to create network client: %w", err)
	}

	if c.blockTracker != nil {
		// the superseded tracker's polling task would leak otherwise;
		// stopping it is not awaited so the switch stays synchronous
		old := c.blockTracker
		go func() {
			if err := old.Destroy(context.Background()); err != nil {
				c.logger.Warn("Failed to stop superseded block tracker", zap.Error(err))
			}
		}()
	}

	c.provider = provider
	c.blockTracker = blockTracker
	if c.providerProxy == nil {
		c.providerProxy = newProviderProxy(provider)
		c.blockTrackerProxy = newBlockTrackerProxy(blockTracker)
	} else {
		c.providerProxy.SetTarget(provider)
		c.blockTrackerProxy.SetTarget(blockTracker)
	}

	c.logger.Info("Installed network client",
		zap.String("type", string(cfg.Type)),
		zap.String("chainId", string(cfg.ChainID)))
	return nil
}

func (c *NetworkController) clientSpecFor(cfg entity.ProviderConfiguration) (port.NetworkClientSpec, error) {
	switch {
	case cfg.Type.IsBuiltIn():
		return port.NetworkClientSpec{
			Type:    port.NetworkClientTypeInfura,
			Network: cfg.Type,
			APIKey:  c.projectID,
		}, nil
	case cfg.Type == entity.ProviderTypeRpc:
		if cfg.RPCURL == "" {
			return port.NetworkClientSpec{}, fmt.Errorf("rpcUrl must be provided for a custom RPC provider")
		}
		return port.NetworkClientSpec{
			Type:    port.NetworkClientTypeCustom,
			RPCURL:  cfg.RPCURL,
			ChainID: cfg.ChainID,
		}, nil
	default:
		return port.NetworkClientSpec{}, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// UpsertNetworkConfiguration adds or updates a custom network, keyed
// case-insensitively by RPC URL, and returns the configuration id. The
// analytics sink is notified only on first-time insertion.
func (c *NetworkController) UpsertNetworkConfiguration(nc entity.NetworkConfiguration, opts UpsertOptions) (string, error) {
	if err := nc.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(opts.Referrer) == "" || strings.TrimSpace(opts.Source) == "" {
		return "", fmt.Errorf("referrer and source are required when adding or updating a network")
	}

	configurations := c.networkConfigurationsStore.GetState().Clone()
	existing, alreadyKnown := configurations.FindByRPCURL(nc.RPCURL)
	if alreadyKnown {
		nc.ID = existing.ID
	} else {
		nc.ID = uuid.NewString()
	}
	configurations[nc.ID] = nc
	c.networkConfigurationsStore.PutState(configurations)

	if !alreadyKnown {
		c.trackEvent(entity.MetricsEvent{
			Event:    entity.EventCustomNetworkAdded,
			Category: entity.MetricsCategoryNetwork,
			Referrer: entity.MetricsReferrer{URL: opts.Referrer},
			Properties: map[string]any{
				"chain_id": nc.ChainID,
				"symbol":   nc.Ticker,
				"source":   opts.Source,
			},
		})
	}

	if opts.SetActive {
		if _, err := c.SetActiveNetwork(nc.ID); err != nil {
			return "", err
		}
	}
	return nc.ID, nil
}

// RemoveNetworkConfiguration deletes the registry entry with the given id.
// It does not switch away if that network is currently active; that
// coordination belongs to the caller.
func (c *NetworkController) RemoveNetworkConfiguration(id string) {
	configurations := c.networkConfigurationsStore.GetState()
	if _, ok := configurations[id]; !ok {
		return
	}
	configurations = configurations.Clone()
	delete(configurations, id)
	c.networkConfigurationsStore.PutState(configurations)
}

// Destroy stops the live block tracker's polling task. In-flight requests
// are not aborted.
func (c *NetworkController) Destroy(ctx context.Context) error {
	c.mu.Lock()
	blockTracker := c.blockTracker
	c.mu.Unlock()
	if blockTracker == nil {
		return nil
	}
	return blockTracker.Destroy(ctx)
}
