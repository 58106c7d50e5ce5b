package port

import (
	"context"
	"encoding/json"

	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/events"
)

// Listener receives events emitted by a Provider or BlockTracker.
type Listener = events.Listener

// Provider issues JSON-RPC requests against a specific endpoint through a
// configured middleware chain.
type Provider interface {
	// Request performs a JSON-RPC call and returns the raw result payload.
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// BlockTracker is a background poller that emits "latest" with the new block
// number whenever the chain head advances. Event names beginning with an
// underscore are tracker-private lifecycle signals.
type BlockTracker interface {
	// On registers fn for event and returns its deregistration func.
	On(event string, fn Listener) (off func())

	// Once registers fn for a single delivery of event.
	Once(event string, fn Listener) (off func())

	// LatestBlock returns the most recent block number seen by the tracker,
	// polling immediately if none has been observed yet.
	LatestBlock(ctx context.Context) (string, error)

	// Destroy stops the polling task. In-flight requests are not aborted.
	Destroy(ctx context.Context) error
}

// NetworkClientType selects which middleware chain the factory builds.
type NetworkClientType string

const (
	NetworkClientTypeInfura NetworkClientType = "infura"
	NetworkClientTypeCustom NetworkClientType = "custom"
)

// NetworkClientSpec describes the endpoint a network client should be built
// for. Infura clients are keyed by network shortname plus API key; custom
// clients by RPC URL plus chain id.
type NetworkClientSpec struct {
	Type    NetworkClientType
	Network entity.ProviderType
	APIKey  string
	RPCURL  string
	ChainID entity.ChainID
}

// NetworkClientFactory builds provider/block-tracker pairs. The factory is
// pure: equal specs yield independent, equivalent pairs.
type NetworkClientFactory interface {
	CreateNetworkClient(spec NetworkClientSpec) (Provider, BlockTracker, error)
}

// Messenger is the restricted publish/subscribe bus the controller announces
// lifecycle events on. Delivery is synchronous in subscription order.
type Messenger interface {
	Publish(event string)
	Subscribe(event string, fn func()) (unsubscribe func())
}

// TrackEventFunc is the analytics sink callback.
type TrackEventFunc func(event entity.MetricsEvent)
