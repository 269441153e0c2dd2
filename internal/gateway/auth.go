package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Tkzito/lori-llm-local/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// ResolvedAuth holds the resolved auth configuration for the gateway. An
// empty token disables authentication, which is only sane on loopback.
type ResolvedAuth struct {
	Token string
}

// ResolveAuth resolves authentication credentials from config. The config
// loader has already expanded ${ENV} references in the token.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	return ResolvedAuth{Token: cfg.Token}
}

// Enabled reports whether requests must authenticate.
func (a ResolvedAuth) Enabled() bool { return a.Token != "" }

// Authorize checks the token carried by an HTTP request. Clients send it as
// a bearer header; browser WebSocket clients cannot set headers, so the
// `token` query parameter is accepted too.
func Authorize(serverAuth ResolvedAuth, r *http.Request) AuthResult {
	if !serverAuth.Enabled() {
		return AuthResult{OK: true}
	}

	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return AuthResult{OK: false, Reason: "token required"}
	}
	if !safeEqual(token, serverAuth.Token) {
		return AuthResult{OK: false, Reason: "token_mismatch"}
	}
	return AuthResult{OK: true}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// safeEqual performs a constant-time string comparison to prevent timing attacks.
// It avoids early-return on length mismatch to prevent leaking secret length via timing.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	// ConstantTimeCompare returns 0 for different lengths, but we check
	// length separately with ConstantTimeEq to avoid leaking length info.
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
