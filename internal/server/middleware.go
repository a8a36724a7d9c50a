package server

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunepipe/internal/shared"
)

const (
	RequestIDHeader = "X-Request-ID"

	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Content-Type, X-Request-ID"
	corsMaxAge  = 86400
)

type contextKey int

const (
	sessionKey contextKey = iota
	requestIDKey
)

// SessionID returns the web session id attached by [Sessions].
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey).(string)
	return sid
}

// RequestID returns the request id attached by [RequestLogger].
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSessionID attaches sid to ctx as [Sessions] does.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionKey, sid)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLogger tags each request with an id (kept from a well-formed X-Request-ID header) and logs it once done.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if !shared.IsID(id) {
				id = shared.GenerateID()
			}
			w.Header().Set(RequestIDHeader, id)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", id,
			}
			switch {
			case status >= 500:
				logger.Error("request", kv...)
			case status >= 400:
				logger.Warn("request", kv...)
			default:
				logger.Info("request", kv...)
			}
		})
	}
}

// Recoverer turns a handler panic into a 500 response.
func Recoverer(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error("panic serving request", "path", r.URL.Path, "panic", v, "request_id", RequestID(r.Context()))
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// OriginPolicy decides which browser origins may call the API.
type OriginPolicy struct {
	exact    []string
	patterns []*regexp.Regexp
}

// NewOriginPolicy compiles the configured origins. Patterns are regular expressions matched against the whole
// Origin header.
func NewOriginPolicy(cfg shared.CORSConfig) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: slices.Clone(cfg.AllowedOrigins)}
	for _, expr := range cfg.AllowedOriginPatterns {
		re, err := regexp.Compile(`^(?:` + expr + `)$`)
		if err != nil {
			return nil, fmt.Errorf("%w: cors pattern %q: %v", shared.ErrInvalidConfig, expr, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed reports whether origin is permitted.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if slices.Contains(p.exact, origin) {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests with 204 and adds credentialed CORS headers for allowed origins.
// Disallowed origins get no CORS headers, so the browser blocks the response.
func CORS(policy *OriginPolicy) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			allowed := policy.Allowed(origin)
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					headers := r.Header.Get("Access-Control-Request-Headers")
					if headers == "" {
						headers = corsHeaders
					}
					w.Header().Set("Access-Control-Allow-Methods", corsMethods)
					w.Header().Set("Access-Control-Allow-Headers", headers)
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Sessions attaches the web session id from the session cookie, issuing a new id when the cookie is missing or
// malformed. The cookie is re-sent on every response so its lifetime rolls.
func Sessions(cfg shared.SessionConfig) Middleware {
	name := cfg.CookieName
	if name == "" {
		name = "tunepipe_session"
	}
	maxAge := int(cfg.TTL() / time.Second)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(name); err == nil && shared.IsID(strings.TrimSpace(c.Value)) {
				sid = strings.TrimSpace(c.Value)
			}
			if sid == "" {
				sid = shared.GenerateID()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     name,
				Value:    sid,
				Path:     "/",
				MaxAge:   maxAge,
				Expires:  time.Now().Add(cfg.TTL()).UTC(),
				Secure:   true,
				HttpOnly: true,
				SameSite: http.SameSiteNoneMode,
			})

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}
