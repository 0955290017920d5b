package api

import (
	"net/http"
	"strings"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/ledger"
)

func (s *Server) handleRegisterAuction(w http.ResponseWriter, r *http.Request) {
	key, err := itemKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.auction.RegisterAuction(r.Context(), key); err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := s.auction.Status(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleAuctionStatus(w http.ResponseWriter, r *http.Request) {
	key, err := itemKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := s.auction.Status(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	key, err := itemKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		Amount int64  `json:"amount"`
		Group  string `json:"group"`
		ClubID *int64 `json:"club_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	actor := callerFromContext(r.Context()).Actor
	bidder := actor
	if g := strings.TrimSpace(in.Group); g != "" {
		bidder = ledger.Group(g)
	}
	bid, err := s.auction.PlaceBid(r.Context(), auction.BidRequest{
		Item:   key,
		Bidder: bidder,
		Actor:  actor.ID,
		Amount: in.Amount,
		ClubID: in.ClubID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := s.auction.Status(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bid": bid, "status": st})
}

func (s *Server) handleBids(w http.ResponseWriter, r *http.Request) {
	key, err := itemKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	bids, err := s.auction.Bids(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	key, err := itemKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.auction.FinalizeNow(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResetAuction(w http.ResponseWriter, r *http.Request) {
	key, err := itemKey(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.auction.ResetAuction(r.Context(), key); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleFreeze(w http.ResponseWriter, _ *http.Request) {
	s.auction.Freeze()
	s.log.Info("bidding frozen")
	writeJSON(w, http.StatusOK, map[string]any{"frozen": true})
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, _ *http.Request) {
	s.auction.Unfreeze()
	s.log.Info("bidding unfrozen")
	writeJSON(w, http.StatusOK, map[string]any{"frozen": false})
}

func (s *Server) handleRegisterClub(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name      string `json:"name"`
		BasePrice int64  `json:"base_price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	club, err := s.auction.RegisterClub(r.Context(), in.Name, in.BasePrice)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, club)
}

func (s *Server) handleClubsList(w http.ResponseWriter, r *http.Request) {
	clubs, err := s.auction.Clubs(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clubs": clubs})
}

func (s *Server) handleClub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	club, err := s.auction.Club(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, club)
}

func (s *Server) handleRemoveClub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.auction.RemoveClub(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRegisterDuelist(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name           string `json:"name"`
		BasePrice      int64  `json:"base_price"`
		ExpectedSalary int64  `json:"expected_salary"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.auction.RegisterDuelist(r.Context(), in.Name, in.BasePrice, in.ExpectedSalary)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleDuelistsList(w http.ResponseWriter, r *http.Request) {
	out, err := s.auction.Duelists(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"duelists": out})
}

func (s *Server) handleDuelist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.auction.Duelist(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRemoveDuelist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.auction.RemoveDuelist(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStanding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.progress.Standing(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		WinnerClubID int64 `json:"winner_club_id"`
		LoserClubID  int64 `json:"loser_club_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.progress.RecordBattle(r.Context(), in.WinnerClubID, in.LoserClubID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGrantWins(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Wins int64 `json:"wins"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.progress.GrantWins(r.Context(), id, in.Wins)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
