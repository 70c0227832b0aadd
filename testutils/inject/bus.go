// Package inject provides injectable fakes of the bridge's collaborators.
package inject

import (
	"context"

	"go.viam.com/lcmbridge/lcm"
)

// Bus is an injected LCM bus.
type Bus struct {
	*lcm.Bus
	SubscribeFunc   func(channel string, handler lcm.Handler) (*lcm.Subscription, error)
	UnsubscribeFunc func(sub *lcm.Subscription) error
	HandleFunc      func(ctx context.Context) error
	GoodFunc        func() bool
	ErrFunc         func() error
}

// NewBus returns a new injected bus wrapping bus, which may be nil when every func is injected.
func NewBus(bus *lcm.Bus) *Bus {
	return &Bus{Bus: bus}
}

// Subscribe calls the injected Subscribe or the real version.
func (b *Bus) Subscribe(channel string, handler lcm.Handler) (*lcm.Subscription, error) {
	if b.SubscribeFunc == nil {
		return b.Bus.Subscribe(channel, handler)
	}
	return b.SubscribeFunc(channel, handler)
}

// Unsubscribe calls the injected Unsubscribe or the real version.
func (b *Bus) Unsubscribe(sub *lcm.Subscription) error {
	if b.UnsubscribeFunc == nil {
		return b.Bus.Unsubscribe(sub)
	}
	return b.UnsubscribeFunc(sub)
}

// Handle calls the injected Handle or the real version.
func (b *Bus) Handle(ctx context.Context) error {
	if b.HandleFunc == nil {
		return b.Bus.Handle(ctx)
	}
	return b.HandleFunc(ctx)
}

// Good calls the injected Good or the real version.
func (b *Bus) Good() bool {
	if b.GoodFunc == nil {
		return b.Bus.Good()
	}
	return b.GoodFunc()
}

// Err calls the injected Err or the real version.
func (b *Bus) Err() error {
	if b.ErrFunc == nil {
		return b.Bus.Err()
	}
	return b.ErrFunc()
}
