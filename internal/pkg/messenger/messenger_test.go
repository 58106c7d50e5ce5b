package messenger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := New(nil)
	var order []int
	bus.Subscribe("event", func() { order = append(order, 1) })
	bus.Subscribe("event", func() { order = append(order, 2) })

	bus.Publish("event")
	assert.Equal(t, []int{1, 2}, order)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New(nil)
	count := 0
	unsubscribe := bus.Subscribe("event", func() { count++ })

	bus.Publish("event")
	unsubscribe()
	bus.Publish("event")
	assert.Equal(t, 1, count)
}

func TestBusUnsubscribeDuringPublishIsSafe(t *testing.T) {
	bus := New(nil)
	count := 0
	var unsubscribe func()
	unsubscribe = bus.Subscribe("event", func() {
		count++
		unsubscribe()
	})

	bus.Publish("event")
	bus.Publish("event")
	assert.Equal(t, 1, count)
}

func TestBusPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := New(nil)
	delivered := false
	bus.Subscribe("event", func() { panic("boom") })
	bus.Subscribe("event", func() { delivered = true })

	bus.Publish("event")
	assert.True(t, delivered)
}

func TestRestrictedNamespacesEvents(t *testing.T) {
	bus := New(nil)
	restricted := bus.Restrict("NetworkController")

	viaRestricted := 0
	viaRoot := 0
	restricted.Subscribe("networkDidChange", func() { viaRestricted++ })
	bus.Subscribe("NetworkController:networkDidChange", func() { viaRoot++ })

	restricted.Publish("networkDidChange")
	assert.Equal(t, 1, viaRestricted)
	assert.Equal(t, 1, viaRoot)

	// a different namespace does not leak through
	bus.Restrict("Other").Publish("networkDidChange")
	assert.Equal(t, 1, viaRestricted)
}
