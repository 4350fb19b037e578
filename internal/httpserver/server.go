// internal/httpserver/server.go
//
// HTTP server wiring for the game backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/modes".
//   - Round endpoint (optional auth): POST /{mode} with a tagged action body.
//   - Leaderboard: GET /leaderboard/{mode}?date=YYYY-MM-DD.
//   - Websocket gateway mount point (outside the request timeout).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Session keys travel in the body on every call; nothing is inferred
//     from cookies except the optional player identity.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gamedle/internal/auth"
	"github.com/robalobadob/gamedle/internal/daily"
	"github.com/robalobadob/gamedle/internal/protocol"
	"github.com/robalobadob/gamedle/internal/round"
	"github.com/robalobadob/gamedle/internal/stats"
)

// Options configures transport concerns only.
type Options struct {
	ClientOrigin string        // CORS origin; "*" is not allowed with credentials
	JWTSecret    string        // empty disables token parsing (everyone is a guest)
	CookieName   string        // auth cookie checked after the Authorization header
	Timeout      time.Duration // per-request handler budget
}

// Recorder accepts play records without blocking.
type Recorder interface {
	Record(stats.Record) bool
}

// Leaderboard answers per-day rankings.
type Leaderboard interface {
	Leaderboard(ctx context.Context, mode, date string, limit int) ([]stats.LBRow, error)
}

// Server bundles router and round controller.
type Server struct {
	r      *chi.Mux
	rounds *round.Controller
	rec    Recorder
	board  Leaderboard
	opts   Options
}

// New constructs a Server, installs middleware, and registers routes.
// rec and board may be nil.
func New(rounds *round.Controller, rec Recorder, board Leaderboard, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	s := &Server{r: chi.NewRouter(), rounds: rounds, rec: rec, board: board, opts: opts}

	// --- middleware shared with the websocket route ---
	s.r.Use(chimw.RequestID)                                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                                 // recover from panics
	s.r.Use(cors(opts.ClientOrigin))                         // credentials-friendly CORS
	s.r.Use(auth.Optional(opts.JWTSecret, opts.CookieName)) // attach player id when a valid token is present

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(opts.Timeout)) // bound handler time
		r.Use(jsonContentType)             // default JSON responses
		r.Use(hlog.NewHandler(log.Logger))
		r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("took", d).
				Str("req_id", chimw.GetReqID(r.Context())).
				Msg("request")
		}))

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"gamedle-go","endpoints":["/health","/modes","POST /{mode}","GET /leaderboard/{mode}","GET /ws/{mode}"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/modes", s.handleModes)

		r.Get("/leaderboard/{mode}", s.handleLeaderboard)
		r.Post("/{mode}", s.handleMode)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// MountWebsocket serves h on GET /ws/{mode}, outside the request timeout.
func (s *Server) MountWebsocket(h http.Handler) {
	s.r.Get("/ws/{mode}", h.ServeHTTP)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ------------------------------ ROUNDS -------------------------------------

// maxBodyBytes bounds a POST /{mode} body.
const maxBodyBytes = 64 << 10

// modeRequest is the body of POST /{mode}. Guess and Stats fields are
// flattened so clients send e.g. {"action":"check-answer","key":"…","candidateId":7}.
type modeRequest struct {
	Action  protocol.Action `json:"action"`
	Key     string          `json:"key,omitempty"`
	Exclude []int64         `json:"exclude,omitempty"`
	protocol.Guess
	protocol.Stats
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modes": s.rounds.Modes().List()})
}

// handleMode dispatches on the request's action tag.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	m, err := s.rounds.Modes().Get(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req modeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, protocol.Error{Code: "body_too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, protocol.Error{Code: "bad_json"})
		return
	}
	if needsKey(req.Action) && req.Key == "" {
		writeJSON(w, http.StatusBadRequest, protocol.Error{Code: "missing_key"})
		return
	}
	ctx := r.Context()
	player := auth.PlayerID(ctx)

	switch req.Action {
	case protocol.ActionSetAnswer:
		// keys are always server-generated over HTTP
		rd, err := s.rounds.Start(ctx, m.ID, round.StartOptions{Exclude: req.Exclude, PlayerID: player})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rd)

	case protocol.ActionCheckAnswer:
		v, err := protocol.Evaluate(ctx, s.rounds, m, req.Key, req.Guess)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)

	case protocol.ActionPeek:
		rd, err := s.rounds.Peek(ctx, m.ID, req.Key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rd)

	case protocol.ActionEnd:
		if err := s.rounds.End(ctx, m.ID, req.Key); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case protocol.ActionStats:
		if s.rec != nil {
			s.rec.Record(req.Stats.Verify(ctx, s.rounds, m, req.Key, player))
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	default:
		writeJSON(w, http.StatusBadRequest, protocol.Error{Code: "unknown_action", Message: string(req.Action)})
	}
}

func needsKey(a protocol.Action) bool {
	switch a {
	case protocol.ActionCheckAnswer, protocol.ActionPeek, protocol.ActionEnd:
		return true
	}
	return false
}

// ---------------------------- LEADERBOARD ----------------------------------

// handleLeaderboard returns the best plays of a mode for a day (default today, UTC).
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	m, err := s.rounds.Modes().Get(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.board == nil {
		writeJSON(w, http.StatusServiceUnavailable, protocol.Error{Code: "leaderboard_unavailable"})
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.Error{Code: "bad_date", Message: "expected YYYY-MM-DD"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	rows, err := s.board.Leaderboard(r.Context(), m.ID, date, limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("mode", m.ID).Msg("leaderboard")
		writeJSON(w, http.StatusInternalServerError, protocol.Error{Code: "db_error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": m.ID, "date": date, "rows": rows})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates core errors to status codes. Only unexpected
// failures are logged at error level.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := protocol.Classify(err)
	ev := hlog.FromRequest(r).Debug()
	if status >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Str("mode", chi.URLParam(r, "mode")).Str("code", body.Code).Msg("request failed")
	writeJSON(w, status, body)
}
