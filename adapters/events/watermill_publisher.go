package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/layer-3/vaultgate/ports"
)

const (
	// LoginTopic receives one message per successful login
	LoginTopic = "vaultgate.login"
	// VenueWriteTopic receives one message per confirmed venue write
	VenueWriteTopic = "vaultgate.venue.write"
)

// LoginEvent is published after a successful wallet login
type LoginEvent struct {
	IdentityID int64     `json:"identity_id"`
	Address    string    `json:"address"`
	At         time.Time `json:"at"`
}

// VenueWriteEvent is published after a confirmed venue write
type VenueWriteEvent struct {
	Venue     string    `json:"venue"`
	Operation string    `json:"operation"`
	Reference string    `json:"reference,omitempty"`
	TxHash    string    `json:"tx_hash"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, identityID int64, address string) error {
	return p.publish(ctx, LoginTopic, LoginEvent{
		IdentityID: identityID,
		Address:    address,
		At:         time.Now().UTC(),
	})
}

// PublishVenueWrite publishes a confirmed venue write
func (p *WatermillPublisher) PublishVenueWrite(ctx context.Context, venue, operation, reference, txHash string) error {
	return p.publish(ctx, VenueWriteTopic, VenueWriteEvent{
		Venue:     venue,
		Operation: operation,
		Reference: reference,
		TxHash:    txHash,
		At:        time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishLogin(context.Context, int64, string) error { return nil }

func (NopPublisher) PublishVenueWrite(context.Context, string, string, string, string) error {
	return nil
}
