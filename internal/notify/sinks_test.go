package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"auctionhouse/internal/ledger"

	"github.com/bwmarrin/discordgo"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPSinkRoutesByKind(t *testing.T) {
	pub := &fakePublisher{}
	sink := &AMQPSink{ch: pub, exchange: "auction_events", timeout: time.Second}
	ev := Event{Kind: AuctionSettled, Item: ledger.ClubKey(3), Winner: ledger.User("ana"), Amount: 1103}

	require.NoError(t, sink.Publish(context.Background(), ev))
	require.Equal(t, "auction_events", pub.exchange)
	require.Equal(t, "auction.settled", pub.key)
	require.Equal(t, "application/json", pub.msg.ContentType)

	var got Event
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	require.Equal(t, int64(1103), got.Amount)
	require.True(t, got.Winner.Equal(ledger.User("ana")))
}

func TestAMQPSinkWrapsPublishError(t *testing.T) {
	sink := &AMQPSink{ch: &fakePublisher{err: errors.New("channel closed")}, exchange: "x", timeout: time.Second}
	err := sink.Publish(context.Background(), Event{Kind: AuctionUnsold})
	require.ErrorContains(t, err, "publish to exchange x")
}

type fakeSender struct {
	channel string
	content string
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel, f.content = channelID, content
	return &discordgo.Message{}, nil
}

func TestDiscordSinkPostsText(t *testing.T) {
	sender := &fakeSender{}
	sink := &DiscordSink{session: sender, channelID: "123"}

	require.NoError(t, sink.Publish(context.Background(), Event{Kind: AuctionUnsold, Item: ledger.ClubKey(9)}))
	require.Equal(t, "123", sender.channel)
	require.Equal(t, "club/9 closed with no bids", sender.content)
}
