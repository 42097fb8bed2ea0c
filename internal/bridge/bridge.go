// Package bridge delivers decoded events to the UI layer. Delivery is
// synchronous and unbuffered: every listener registered on a channel is
// called in registration order before Publish returns, and a payload
// published with no listener is dropped.
package bridge

import (
	"sync"

	"github.com/tamos/tamos-client-go/internal/models"
)

// Channel names a delivery channel
type Channel string

const (
	ChannelEntityPosition Channel = "entity-position"
	ChannelHeatmapReady   Channel = "heatmap-ready"
	ChannelShapesLoaded   Channel = "shapes-loaded"
	ChannelKeysReported   Channel = "keys-reported"
	ChannelRouteDataReady Channel = "route-data-ready"
)

// Channels lists every channel in a fixed order
var Channels = []Channel{
	ChannelEntityPosition,
	ChannelHeatmapReady,
	ChannelShapesLoaded,
	ChannelKeysReported,
	ChannelRouteDataReady,
}

type listener struct {
	id uint64
	fn func(payload any)
}

// Bridge is the single delivery point between producers and the UI layer
type Bridge struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[Channel][]listener
}

// New creates an empty bridge
func New() *Bridge {
	return &Bridge{listeners: make(map[Channel][]listener)}
}

// Subscribe registers fn on ch and returns a func that removes it
func (b *Bridge) Subscribe(ch Channel, fn func(payload any)) (unsubscribe func()) {
	return b.subscribe([]Channel{ch}, func(_ Channel, p any) { fn(p) })
}

// SubscribeAll registers fn on every channel
func (b *Bridge) SubscribeAll(fn func(ch Channel, payload any)) (unsubscribe func()) {
	return b.subscribe(Channels, fn)
}

func (b *Bridge) subscribe(chs []Channel, fn func(Channel, any)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, ch := range chs {
		ch := ch
		b.listeners[ch] = append(b.listeners[ch], listener{
			id: id,
			fn: func(p any) { fn(ch, p) },
		})
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(chs, id) })
	}
}

func (b *Bridge) remove(chs []Channel, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range chs {
		ls := b.listeners[ch]
		kept := make([]listener, 0, len(ls))
		for _, l := range ls {
			if l.id != id {
				kept = append(kept, l)
			}
		}
		b.listeners[ch] = kept
	}
}

// Publish hands payload to every listener on ch and returns how many were
// called
func (b *Bridge) Publish(ch Channel, payload any) int {
	b.mu.RLock()
	ls := b.listeners[ch]
	b.mu.RUnlock()

	// ls is never mutated in place, so it is safe to range over unlocked;
	// listeners may subscribe or unsubscribe from inside fn.
	for _, l := range ls {
		l.fn(payload)
	}
	return len(ls)
}

// ListenerCount returns the number of listeners on ch
func (b *Bridge) ListenerCount(ch Channel) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[ch])
}

// OnEntityPosition registers a typed entity-position listener
func (b *Bridge) OnEntityPosition(fn func(models.EntityPosition)) func() {
	return b.Subscribe(ChannelEntityPosition, func(p any) {
		if pos, ok := p.(models.EntityPosition); ok {
			fn(pos)
		}
	})
}

// OnHeatmapReady registers a typed heatmap-ready listener
func (b *Bridge) OnHeatmapReady(fn func(models.HeatmapPayload)) func() {
	return b.Subscribe(ChannelHeatmapReady, func(p any) {
		if hm, ok := p.(models.HeatmapPayload); ok {
			fn(hm)
		}
	})
}

// OnShapesLoaded registers a typed shapes-loaded listener
func (b *Bridge) OnShapesLoaded(fn func(models.ShapeCollection)) func() {
	return b.Subscribe(ChannelShapesLoaded, func(p any) {
		if c, ok := p.(models.ShapeCollection); ok {
			fn(c)
		}
	})
}

// OnKeysReported registers a typed keys-reported listener
func (b *Bridge) OnKeysReported(fn func([]string)) func() {
	return b.Subscribe(ChannelKeysReported, func(p any) {
		if keys, ok := p.([]string); ok {
			fn(keys)
		}
	})
}

// OnRouteDataReady registers a typed route-data-ready listener
func (b *Bridge) OnRouteDataReady(fn func(models.RoutePayload)) func() {
	return b.Subscribe(ChannelRouteDataReady, func(p any) {
		if rd, ok := p.(models.RoutePayload); ok {
			fn(rd)
		}
	})
}

func (b *Bridge) PublishEntityPosition(pos models.EntityPosition) int {
	return b.Publish(ChannelEntityPosition, pos)
}

func (b *Bridge) PublishHeatmap(p models.HeatmapPayload) int {
	return b.Publish(ChannelHeatmapReady, p)
}

func (b *Bridge) PublishShapes(c models.ShapeCollection) int {
	return b.Publish(ChannelShapesLoaded, c)
}

func (b *Bridge) PublishKeys(keys []string) int {
	return b.Publish(ChannelKeysReported, keys)
}

func (b *Bridge) PublishRouteData(p models.RoutePayload) int {
	return b.Publish(ChannelRouteDataReady, p)
}
