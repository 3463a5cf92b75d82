package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/fleet/core/fleet"
	"github.com/dmitrymomot/fleet/core/health"
	"github.com/dmitrymomot/fleet/core/logger"
	"github.com/dmitrymomot/fleet/core/scaling"
	"github.com/dmitrymomot/fleet/core/session"
	"github.com/dmitrymomot/fleet/middleware"
)

type loginRequest struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	RememberMe bool   `json:"remember_me"`
}

type extendRequest struct {
	Seconds int `json:"seconds"`
}

type sessionResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role,omitempty"`
	Device      string `json:"device"`
	RememberMe  bool   `json:"remember_me"`
	MaxAge      int    `json:"max_age"`
	MFAVerified bool   `json:"mfa_verified"`
	InstanceID  string `json:"instance_id"`
}

// routes builds the HTTP surface of one instance. Every request passes through
// request id, access logging and request tracking for the metrics collector.
func routes(rt *fleet.Runtime, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	sessions := rt.Sessions()
	requireSession := middleware.SessionWithConfig(sessions, middleware.SessionConfig{Logger: log})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.Handle("GET /health/ready", health.Readiness(log, rt.Healthcheck))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s, err := sessions.Create(w, r, session.User{ID: req.UserID, Role: req.Role},
			session.CreateOptions{RememberMe: req.RememberMe})
		if errors.Is(err, session.ErrMissingUser) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			log.ErrorContext(r.Context(), "login failed", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(rt, s))
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Destroy(w, r); err != nil {
			log.ErrorContext(r.Context(), "logout failed", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /extend", func(w http.ResponseWriter, r *http.Request) {
		var req extendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds <= 0 {
			writeError(w, http.StatusBadRequest, "seconds must be positive")
			return
		}
		s, err := sessions.Extend(w, r, req.Seconds)
		if middleware.IsSessionError(err) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			log.ErrorContext(r.Context(), "extend failed", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, toResponse(rt, s))
	})

	mux.Handle("GET /me", requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		writeJSON(w, http.StatusOK, toResponse(rt, s))
	})))

	mux.Handle("POST /sessions/revoke-others", requireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := session.FromContext(r.Context())
		n, err := sessions.InvalidateUser(r.Context(), s.UserID, s.ID)
		if err != nil {
			log.ErrorContext(r.Context(), "revoke sessions failed", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
	})))

	mux.HandleFunc("GET /scaling", func(w http.ResponseWriter, r *http.Request) {
		rec, err := scaling.ReadRecommendation(r.Context(), rt.Backplane())
		if errors.Is(err, scaling.ErrNoRecommendation) {
			writeJSON(w, http.StatusOK, scaling.Record{Recommendation: rt.Advisor().Latest()})
			return
		}
		if err != nil {
			log.ErrorContext(r.Context(), "read recommendation failed", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "backplane unavailable")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	var h http.Handler = mux
	h = middleware.Track(rt.Notifier())(h)
	h = middleware.LoggingWithLogger(log)(h)
	h = middleware.RequestID()(h)
	return h
}

func toResponse(rt *fleet.Runtime, s *session.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		Role:        s.Role,
		Device:      s.Device(),
		RememberMe:  s.RememberMe,
		MaxAge:      s.MaxAge,
		MFAVerified: s.MFAVerified,
		InstanceID:  rt.InstanceID(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
