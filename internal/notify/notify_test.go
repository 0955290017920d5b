package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"auctionhouse/internal/ledger"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/notify/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func TestMultiPublishesToEverySinkAndJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mocks.NewMockSink(ctrl)
	second := mocks.NewMockSink(ctrl)
	ev := notify.Event{Kind: notify.AuctionUnsold, Item: ledger.DuelistKey(4)}
	boom := errors.New("broker down")

	first.EXPECT().Publish(gomock.Any(), ev).Return(boom)
	second.EXPECT().Publish(gomock.Any(), ev).Return(nil)

	err := notify.Multi{first, second}.Publish(context.Background(), ev)
	require.ErrorIs(t, err, boom)
}

func TestEventText(t *testing.T) {
	tests := []struct {
		name string
		ev   notify.Event
		want string
	}{
		{
			name: "settled",
			ev:   notify.Event{Kind: notify.AuctionSettled, Item: ledger.ClubKey(7), Winner: ledger.Group("Night Owls"), Amount: 1103},
			want: "club/7 sold to group:Night Owls for 1103",
		},
		{
			name: "unsold",
			ev:   notify.Event{Kind: notify.AuctionUnsold, Item: ledger.DuelistKey(2)},
			want: "duelist/2 closed with no bids",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.ev.Text())
		})
	}
}

func TestEventJSONCarriesTaggedIdentity(t *testing.T) {
	ev := notify.Event{
		Kind:   notify.AuctionSettled,
		Item:   ledger.ClubKey(1),
		Winner: ledger.User("ana"),
		Amount: 1050,
		At:     time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "user:ana", decoded["winner"])
	require.Equal(t, "auction.settled", decoded["kind"])
}
