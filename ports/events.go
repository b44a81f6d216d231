package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, identityID int64, address string) error
	PublishVenueWrite(ctx context.Context, venue, operation, reference, txHash string) error
}
