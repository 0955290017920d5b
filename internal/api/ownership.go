package api

import (
	"net/http"
	"strings"

	"auctionhouse/internal/ledger"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleEnsureWallet(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if !actsFor(r, user) {
		writeError(w, http.StatusForbidden, "cannot open another user's wallet")
		return
	}
	wallet, created, err := s.owners.EnsureWallet(r.Context(), user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, wallet)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.owners.Balance(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleWalletHistory(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	if !actsFor(r, user) {
		writeError(w, http.StatusForbidden, "cannot read another user's history")
		return
	}
	entries, err := s.owners.History(r.Context(), ledger.User(user))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	var in struct {
		User   string `json:"user"`
		Amount int64  `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet, err := s.owners.Tip(r.Context(), strings.TrimSpace(in.User), in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		SharePct int64  `json:"share_pct"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := s.owners.CreateGroup(r.Context(), in.Name, actorID(r), in.SharePct)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	info, err := s.owners.GroupInfo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SharePct int64 `json:"share_pct"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.owners.JoinGroup(r.Context(), chi.URLParam(r, "name"), actorID(r), in.SharePct)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	penalty, err := s.owners.LeaveGroup(r.Context(), chi.URLParam(r, "name"), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"penalty": penalty})
}

func (s *Server) handleGroupDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleGroupTransfer(w, r, true)
}

func (s *Server) handleGroupWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleGroupTransfer(w, r, false)
}

func (s *Server) handleGroupTransfer(w http.ResponseWriter, r *http.Request, deposit bool) {
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	move := s.owners.Withdraw
	if deposit {
		move = s.owners.Deposit
	}
	info, err := move(r.Context(), chi.URLParam(r, "name"), actorID(r), in.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSellClub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	club, proceeds, err := s.owners.SellClubToMarket(r.Context(), id, actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"club": club, "proceeds": proceeds})
}

func (s *Server) handleClubOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in struct {
		Buyer string `json:"buyer"`
		Price int64  `json:"price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.owners.ProposeClubSale(r.Context(), id, actorID(r), strings.TrimSpace(in.Buyer), in.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleShareOffer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ClubID int64  `json:"club_id"`
		Buyer  string `json:"buyer"`
		Pct    int64  `json:"pct"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.owners.ProposeShareSale(r.Context(), chi.URLParam(r, "name"), in.ClubID, actorID(r), strings.TrimSpace(in.Buyer), in.Pct)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	p, err := s.owners.Proposal(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAcceptConfirmation(w http.ResponseWriter, r *http.Request) {
	p, err := s.owners.Accept(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRejectConfirmation(w http.ResponseWriter, r *http.Request) {
	p, err := s.owners.Reject(chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
