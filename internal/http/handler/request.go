package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/fleetway/fleetway/internal/service"
)

func sessionMeta(r *http.Request) service.SessionMeta {
	return service.SessionMeta{
		UserAgent: r.UserAgent(),
		IP:        requestIP(r),
	}
}

func requestIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		fwd = strings.TrimSpace(fwd)
		if net.ParseIP(fwd) != nil {
			return fwd
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// jsonDecodeQuiet tolerates an empty or malformed body; callers use it when
// the payload is one of several places a value may arrive from.
func jsonDecodeQuiet(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
