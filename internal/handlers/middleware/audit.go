package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/models"
)

// Paths whose requests never reach the audit trail
var auditSkipPrefixes = []string{
	"/health",
	"/docs",
	"/redoc",
	"/openapi.json",
	"/favicon.ico",
}

type auditRecorder interface {
	Submit(record models.AuditRecord)
}

type actorKeyType string

const actorKey actorKeyType = "audit_actor"

// actorHolder lets the auth middleware, which runs deeper in the chain,
// report the resolved user back out to the audit middleware that already
// captured the context.
type actorHolder struct {
	mu   sync.Mutex
	user *models.User
}

func (h *actorHolder) set(user models.User) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.user = &user
}

func (h *actorHolder) get() *models.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user
}

func setActor(ctx context.Context, user models.User) {
	if holder, ok := ctx.Value(actorKey).(*actorHolder); ok {
		holder.set(user)
	}
}

// Audit submits one record per served request: method, path, status,
// duration, client address and the actor when the request authenticated.
// Submission is fire and forget, the response never waits for the write.
func Audit(recorder auditRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auditSkipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			holder := &actorHolder{}
			ctx := context.WithValue(r.Context(), actorKey, holder)

			lw := &logWriter{
				ResponseWriter: w,
				data:           logData{responseStatus: http.StatusOK},
			}

			next.ServeHTTP(lw, r.WithContext(ctx))

			record := models.AuditRecord{
				RequestID:  userctx.RequestID(ctx),
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: lw.data.responseStatus,
				DurationMS: time.Since(start).Milliseconds(),
			}

			if user := holder.get(); user != nil {
				record.UserID = &user.ID
			}
			if ip := clientIP(r); ip != "" {
				record.IP = &ip
			}
			if ua := r.UserAgent(); ua != "" {
				record.UserAgent = &ua
			}

			recorder.Submit(record)
		})
	}
}

func auditSkipped(path string) bool {
	for _, prefix := range auditSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// clientIP prefers the first hop of X-Forwarded-For set by the reverse
// proxy, falling back to the peer address
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
