package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tkzito/lori-llm-local/internal/config"
)

func TestAuthorizeDisabled(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{})
	assert.False(t, auth.Enabled())

	r := httptest.NewRequest("GET", "/ws/chat", nil)
	assert.True(t, Authorize(auth, r).OK)
}

func TestAuthorizeBearerHeader(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Token: "sekrit"})

	r := httptest.NewRequest("GET", "/history", nil)
	r.Header.Set("Authorization", "Bearer sekrit")
	assert.True(t, Authorize(auth, r).OK)

	r.Header.Set("Authorization", "Bearer wrong")
	res := Authorize(auth, r)
	assert.False(t, res.OK)
	assert.Equal(t, "token_mismatch", res.Reason)
}

func TestAuthorizeQueryParam(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Token: "sekrit"})

	r := httptest.NewRequest("GET", "/ws/chat?token=sekrit", nil)
	assert.True(t, Authorize(auth, r).OK)
}

func TestAuthorizeMissingToken(t *testing.T) {
	auth := ResolveAuth(config.GatewayAuth{Token: "sekrit"})

	r := httptest.NewRequest("GET", "/ws/chat", nil)
	res := Authorize(auth, r)
	assert.False(t, res.OK)
	assert.Equal(t, "token required", res.Reason)
}

func TestSafeEqual(t *testing.T) {
	assert.True(t, safeEqual("abc", "abc"))
	assert.False(t, safeEqual("abc", "abd"))
	assert.False(t, safeEqual("abc", "abcd"))
	assert.False(t, safeEqual("", "abc"))
	assert.True(t, safeEqual("", ""))
}
