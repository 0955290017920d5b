package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/config"
	"auctionhouse/internal/ledger"
	"auctionhouse/internal/ownership"
	"auctionhouse/internal/progression"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const callerContextKey contextKey = "caller"

type Role string

const (
	RoleCommand Role = "command"
	RoleAdmin   Role = "admin"
)

// Caller is who sent the request: the token's role plus the acting user
// named by X-Actor. Admin requests may omit the actor.
type Caller struct {
	Role  Role
	Actor ledger.Identity
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	auction  *auction.Engine
	owners   *ownership.Service
	progress *progression.Service
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, engine *auction.Engine, owners *ownership.Service, progress *progression.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		auction:  engine,
		owners:   owners,
		progress: progress,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Group(func(r chi.Router) {
			r.Use(requireActor)
			r.Post("/auctions/{type}/{id}", s.handleRegisterAuction)
			r.Get("/auctions/{type}/{id}", s.handleAuctionStatus)
			r.Post("/auctions/{type}/{id}/bids", s.handlePlaceBid)
			r.Get("/auctions/{type}/{id}/bids", s.handleBids)

			r.Get("/clubs", s.handleClubsList)
			r.Get("/clubs/{id}", s.handleClub)
			r.Get("/clubs/{id}/standing", s.handleStanding)
			r.Post("/clubs/{id}/sell", s.handleSellClub)
			r.Post("/clubs/{id}/offers", s.handleClubOffer)
			r.Get("/duelists", s.handleDuelistsList)
			r.Get("/duelists/{id}", s.handleDuelist)

			r.Post("/wallets/{user}", s.handleEnsureWallet)
			r.Get("/wallets/{user}", s.handleWallet)
			r.Get("/wallets/{user}/history", s.handleWalletHistory)

			r.Post("/groups", s.handleCreateGroup)
			r.Get("/groups/{name}", s.handleGroup)
			r.Post("/groups/{name}/join", s.handleJoinGroup)
			r.Post("/groups/{name}/leave", s.handleLeaveGroup)
			r.Post("/groups/{name}/deposit", s.handleGroupDeposit)
			r.Post("/groups/{name}/withdraw", s.handleGroupWithdraw)
			r.Post("/groups/{name}/share-offers", s.handleShareOffer)

			r.Get("/confirmations/{id}", s.handleConfirmation)
			r.Post("/confirmations/{id}/accept", s.handleAcceptConfirmation)
			r.Post("/confirmations/{id}/reject", s.handleRejectConfirmation)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/auctions/{type}/{id}/finalize", s.handleFinalize)
			r.Delete("/auctions/{type}/{id}", s.handleResetAuction)
			r.Post("/admin/freeze", s.handleFreeze)
			r.Post("/admin/unfreeze", s.handleUnfreeze)
			r.Post("/admin/tips", s.handleTip)
			r.Post("/admin/clubs/{id}/wins", s.handleGrantWins)
			r.Post("/clubs", s.handleRegisterClub)
			r.Delete("/clubs/{id}", s.handleRemoveClub)
			r.Post("/duelists", s.handleRegisterDuelist)
			r.Delete("/duelists/{id}", s.handleRemoveDuelist)
			r.Post("/battles", s.handleBattle)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		var caller Caller
		switch {
		case tokenMatches(token, s.cfg.AdminToken):
			caller.Role = RoleAdmin
		case tokenMatches(token, s.cfg.CommandToken):
			caller.Role = RoleCommand
		default:
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if raw := strings.TrimSpace(r.Header.Get("X-Actor")); raw != "" {
			actor, err := ledger.ParseIdentity(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if !actor.IsUser() {
				writeError(w, http.StatusBadRequest, "X-Actor must name a user")
				return
			}
			caller.Actor = actor
		}
		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFromContext(r.Context()).Actor.IsZero() {
			writeError(w, http.StatusUnauthorized, "missing X-Actor header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFromContext(r.Context()).Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerContextKey).(Caller)
	return c
}

func actorID(r *http.Request) string {
	return callerFromContext(r.Context()).Actor.ID
}

// actsFor reports whether the caller may touch userID's wallet.
func actsFor(r *http.Request, userID string) bool {
	c := callerFromContext(r.Context())
	return c.Role == RoleAdmin || c.Actor.ID == userID
}

func tokenMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func itemKey(r *http.Request) (ledger.ItemKey, error) {
	return ledger.ParseItemKey(chi.URLParam(r, "type"), chi.URLParam(r, "id"))
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrUnknownItem), errors.Is(err, ledger.ErrGroupNotFound),
		errors.Is(err, ledger.ErrWalletNotFound), errors.Is(err, ledger.ErrConfirmationNotFound),
		errors.Is(err, ledger.ErrNoContract):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConfirmationExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, ledger.ErrTxConflict), errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, ledger.ErrConfirmationClosed), errors.Is(err, ledger.ErrGroupExists),
		errors.Is(err, ledger.ErrAlreadyMember):
		writeError(w, http.StatusConflict, err.Error())
	case ledger.IsValidation(err), ledger.IsFunds(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
