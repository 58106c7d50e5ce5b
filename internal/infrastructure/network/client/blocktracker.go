package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Frankramos181422/metamask-extension/internal/app/port"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/events"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// Events emitted by the block tracker. Underscore-prefixed names are
// tracker-private lifecycle signals.
const (
	EventLatest         = "latest"
	eventTrackerStarted = "_started"
	eventTrackerStopped = "_stopped"
)

// PollingBlockTracker polls eth_blockNumber at a fixed cadence and emits
// "latest" with the new block number whenever the chain head advances.
type PollingBlockTracker struct {
	provider port.Provider
	emitter  *events.Emitter
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	current string

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ port.BlockTracker = (*PollingBlockTracker)(nil)

// NewPollingBlockTracker builds a tracker over provider and starts its
// polling task immediately.
func NewPollingBlockTracker(provider port.Provider, interval time.Duration, logger *zap.Logger) *PollingBlockTracker {
	t := &PollingBlockTracker{
		provider: provider,
		emitter:  events.New(),
		interval: interval,
		logger:   logger.Named("BlockTracker"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *PollingBlockTracker) run() {
	defer close(t.doneCh)
	t.emitter.Emit(eventTrackerStarted)
	defer t.emitter.Emit(eventTrackerStopped)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.poll()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *PollingBlockTracker) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), t.interval)
	defer cancel()

	number, err := t.fetchBlockNumber(ctx)
	if err != nil {
		t.logger.Debug("Failed to poll latest block number", zap.Error(err))
		return
	}
	t.advanceTo(number)
}

func (t *PollingBlockTracker) fetchBlockNumber(ctx context.Context) (string, error) {
	raw, err := t.provider.Request(ctx, "eth_blockNumber")
	if err != nil {
		return "", err
	}
	var number string
	if err := jsonCodec.Unmarshal(raw, &number); err != nil {
		return "", fmt.Errorf("failed to decode eth_blockNumber result: %w", err)
	}
	if _, err := hexutil.DecodeUint64(number); err != nil {
		return "", fmt.Errorf("eth_blockNumber returned a non-hex quantity %q: %w", number, err)
	}
	return number, nil
}

func (t *PollingBlockTracker) advanceTo(number string) {
	t.mu.Lock()
	changed := number != t.current
	t.current = number
	t.mu.Unlock()

	if !changed {
		return
	}
	if v, err := hexutil.DecodeUint64(number); err == nil {
		metrics.ChainHeadBlock.Set(float64(v))
	}
	t.emitter.Emit(EventLatest, number)
}

// On registers fn for event and returns its deregistration func.
func (t *PollingBlockTracker) On(event string, fn events.Listener) (off func()) {
	return t.emitter.On(event, fn)
}

// Once registers fn for a single delivery of event.
func (t *PollingBlockTracker) Once(event string, fn events.Listener) (off func()) {
	return t.emitter.Once(event, fn)
}

// LatestBlock returns the most recent block number seen, polling once if the
// tracker has not observed one yet.
func (t *PollingBlockTracker) LatestBlock(ctx context.Context) (string, error) {
	t.mu.Lock()
	current := t.current
	t.mu.Unlock()
	if current != "" {
		return current, nil
	}

	number, err := t.fetchBlockNumber(ctx)
	if err != nil {
		return "", err
	}
	t.advanceTo(number)
	return number, nil
}

// Destroy stops the polling task and waits for it to exit. In-flight
// requests are not aborted.
func (t *PollingBlockTracker) Destroy(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stopCh) })
	select {
	case <-t.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("block tracker shutdown interrupted: %w", ctx.Err())
	}
}
