// Package server exposes the login endpoint that login triggers forward
// assertions to.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/containifyci/assertion-login/internal/replay"
	"github.com/containifyci/assertion-login/internal/verify"
	"github.com/containifyci/assertion-login/pkg/client"
	"github.com/containifyci/assertion-login/pkg/model"
)

const maxBodySize = 64 << 10

type Server struct {
	verifier  verify.Verifier
	guard     replay.Guard
	replayTTL time.Duration
	logger    *slog.Logger
}

func New(verifier verify.Verifier, guard replay.Guard, replayTTL time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		verifier:  verifier,
		guard:     guard,
		replayTTL: replayTTL,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.POST(client.LoginPath, s.login)
	r.GET("/healthz", s.healthz)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// login answers null for every assertion that does not log the user in, and
// the user record otherwise.
func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "Malformed login request", http.StatusBadRequest)
		s.logger.Debug("malformed login request", "error", err)
		return
	}

	if !req.Assertion.Present() {
		s.writeUser(w, nil)
		return
	}

	ctx := r.Context()
	fresh, err := s.guard.Claim(ctx, req.Assertion, s.replayTTL)
	if err != nil {
		s.logger.Error("replay guard unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "replay guard unavailable")
		return
	}
	if !fresh {
		s.logger.Warn("assertion replayed", "remote", r.RemoteAddr)
		s.writeUser(w, nil)
		return
	}

	user, err := s.verifier.Verify(ctx, req.Assertion)
	if errors.Is(err, verify.ErrInvalidAssertion) {
		s.logger.Info("assertion rejected", "error", err, "remote", r.RemoteAddr)
		s.writeUser(w, nil)
		return
	}
	if err != nil {
		s.logger.Error("assertion verification failed", "error", err)
		// the assertion was never checked, so a retry must not look like a replay
		if rerr := s.guard.Release(ctx, req.Assertion); rerr != nil {
			s.logger.Error("failed to release assertion claim", "error", rerr)
		}
		writeError(w, http.StatusBadGateway, "assertion verification failed")
		return
	}

	s.logger.Info("user logged in", "user", user.ID, "email", user.Email)
	s.writeUser(w, user)
}

func (s *Server) writeUser(w http.ResponseWriter, user *model.User) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(user); err != nil {
		s.logger.Error("error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
