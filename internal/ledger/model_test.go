package ledger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		in      string
		want    Identity
		wantErr bool
	}{
		{in: "user:42", want: User("42")},
		{in: "group:Night Owls", want: Group("Night Owls")},
		{in: " USER:abc ", want: User("abc")},
		{in: "", want: Identity{}},
		{in: "42", wantErr: true},
		{in: "team:x", wantErr: true},
		{in: "group:x", wantErr: true},
		{in: "user:", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseIdentity(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			require.True(t, errors.Is(err, ErrInvalidIdentity), tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
}

func TestIdentityJSONRoundTrip(t *testing.T) {
	in := struct {
		Owner Identity `json:"owner"`
		None  Identity `json:"none"`
	}{Owner: Group("Night Owls")}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"owner":"group:Night Owls","none":""}`, string(raw))

	var out struct {
		Owner Identity `json:"owner"`
		None  Identity `json:"none"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.True(t, out.Owner.Equal(Group("Night Owls")))
	require.True(t, out.None.IsZero())
}

func TestParseItemKey(t *testing.T) {
	key, err := ParseItemKey("Club", "7")
	require.NoError(t, err)
	require.Equal(t, ClubKey(7), key)
	require.Equal(t, "club/7", key.String())

	_, err = ParseItemKey("stadium", "7")
	require.ErrorIs(t, err, ErrUnknownItem)
	_, err = ParseItemKey("duelist", "-1")
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		amount, pct, want int64
	}{
		{1000, 5, 50},
		{1050, 5, 53},
		{19, 5, 1},
		{1, 5, 0},
		{0, 5, 0},
		{2500, 20, 500},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, PercentOf(tc.amount, tc.pct), "amount=%d pct=%d", tc.amount, tc.pct)
	}
}

func TestTransferBalances(t *testing.T) {
	rows := Transfer("deposit", AccountOf(User("1")), AccountOf(Group("Owls")), 250, "")
	require.Len(t, rows, 2)
	require.Equal(t, rows[0].TxGroup, rows[1].TxGroup)
	require.Equal(t, int64(0), rows[0].Delta+rows[1].Delta)
	require.Equal(t, "wallet:1", rows[0].Account)
	require.Equal(t, "fund:Owls", rows[1].Account)
}

func TestErrorClasses(t *testing.T) {
	require.True(t, IsValidation(ErrBidTooLow))
	require.True(t, IsFunds(ErrShareOverflow))
	require.False(t, IsValidation(ErrInsufficientFunds))
	require.False(t, IsFunds(nil))
}
