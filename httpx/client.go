package httpx

import (
	"net"
	"net/http"
)

// ClientIP is the caller's address without the port. Behind a proxy it
// relies on middleware.RealIP having rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
