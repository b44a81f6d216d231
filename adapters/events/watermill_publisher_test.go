package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishLogin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, LoginTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishLogin(ctx, 7, "0x00000000000000000000000000000000000000aa"))

	select {
	case msg := <-messages:
		msg.Ack()
		var ev LoginEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, int64(7), ev.IdentityID)
		assert.Equal(t, "0x00000000000000000000000000000000000000aa", ev.Address)
	case <-ctx.Done():
		t.Fatal("login event not delivered")
	}
}

func TestPublishVenueWrite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(ctx, VenueWriteTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishVenueWrite(ctx, "spot", "createOrder", "42", "0xabc"))

	select {
	case msg := <-messages:
		msg.Ack()
		var ev VenueWriteEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "spot", ev.Venue)
		assert.Equal(t, "createOrder", ev.Operation)
		assert.Equal(t, "42", ev.Reference)
		assert.Equal(t, "0xabc", ev.TxHash)
	case <-ctx.Done():
		t.Fatal("venue event not delivered")
	}
}
