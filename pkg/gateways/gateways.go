// Package gateways defines the outbound channel collaborators actions
// dispatch through. Real providers live outside this repo; the interfaces
// here are the contract, plus a logging implementation for dev and a
// recorder for tests.
package gateways

import "context"

// Channel identifies an outbound delivery channel. Also the rate-limiter
// bucket key alongside the workflow ID.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelCall     Channel = "call"
	ChannelDiscount Channel = "discount"
)

// Message is one outbound send. Payload carries the action node's config
// (template, subject, message body, discount percent...).
type Message struct {
	Channel  Channel        `json:"channel"`
	EntityID string         `json:"entity_id"`
	Payload  map[string]any `json:"payload"`
}

// Receipt is the synchronous half of a fire-and-forget send.
type Receipt struct {
	Accepted   bool   `json:"accepted"`
	ProviderID string `json:"provider_id"`
}

// DeliveryStatus arrives asynchronously from the provider.
type DeliveryStatus struct {
	ProviderID string `json:"provider_id"`
	Delivered  bool   `json:"delivered"`
	Detail     string `json:"detail,omitempty"`
}

// DeliveryCallback receives async provider status updates.
type DeliveryCallback func(ctx context.Context, status DeliveryStatus)

// Gateway sends messages on one channel.
type Gateway interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Gateways bundles one gateway per channel, as wired by the engine binary.
type Gateways map[Channel]Gateway

// For returns the gateway for a channel, or nil.
func (g Gateways) For(channel Channel) Gateway {
	return g[channel]
}
