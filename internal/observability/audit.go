package observability

import (
	"context"
	"log/slog"
	"net/http"
)

func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}

// SecurityEvent records adversarial signals (token theft, backup-code reuse).
// These are never surfaced in synchronous return values; the log is the only
// place they are observable.
func SecurityEvent(ctx context.Context, event string, attrs ...any) {
	base := []any{"event", event}
	base = append(base, attrs...)
	slog.WarnContext(ctx, "security_event", base...)
}
