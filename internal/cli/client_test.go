package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"auctionhouse/internal/ledger"

	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "user:ana", r.Header.Get("X-Actor"))
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auctions/club/7/bids", r.URL.Path)

		var in BidInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, int64(1050), in.Amount)
		require.Equal(t, "Crew", in.Group)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"bid":{"id":3,"bidder":"group:Crew","amount":1050},"status":{"state":"running","min_next":1103}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", "user:ana")
	out, err := c.PlaceBid(context.Background(), ledger.ClubKey(7), BidInput{Amount: 1050, Group: "Crew"})
	require.NoError(t, err)
	require.Equal(t, ledger.Group("Crew"), out.Bid.Bidder)
	require.Equal(t, int64(1103), out.Status.MinNext)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bid too low: minimum is 1103"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", "user:ana").Status(context.Background(), ledger.DuelistKey(2))
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusBadRequest))
	require.EqualError(t, err, "api status 400: bid too low: minimum is 1103")
}

func TestSessionRoundTrip(t *testing.T) {
	Dir = t.TempDir()
	t.Cleanup(func() { Dir = "" })

	_, err := LoadSession()
	require.Error(t, err)

	want := Session{APIBaseURL: "http://localhost:8080", Token: "tok", Actor: "user:ana"}
	require.NoError(t, SaveSession(want))
	got, err := LoadSession()
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, ClearSession())
	require.NoError(t, ClearSession())
	_, err = LoadSession()
	require.Error(t, err)
}
