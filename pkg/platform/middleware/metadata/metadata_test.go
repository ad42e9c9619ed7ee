package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghostauth/pkg/requestcontext"
)

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.50 ", ""})
	require.NoError(t, err)
	behindProxy := NewResolver(proxies)
	direct := NewResolver(nil)

	cases := []struct {
		name     string
		resolver *Resolver
		headers  map[string]string
		remote   string
		want     string
	}{
		{name: "forwarded header ignored without trusted proxies", resolver: direct, headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "198.51.100.9:1234", want: "198.51.100.9"},
		{name: "real ip ignored without trusted proxies", resolver: direct, headers: map[string]string{"X-Real-IP": "203.0.113.7"}, remote: "198.51.100.9:1234", want: "198.51.100.9"},
		{name: "forwarded header ignored from untrusted peer", resolver: behindProxy, headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "198.51.100.9:1234", want: "198.51.100.9"},
		{name: "rightmost untrusted hop from trusted peer", resolver: behindProxy, headers: map[string]string{"X-Forwarded-For": "6.6.6.6, 203.0.113.7, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "203.0.113.7"},
		{name: "bare address proxy", resolver: behindProxy, headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, remote: "192.0.2.50:1234", want: "203.0.113.7"},
		{name: "all hops trusted", resolver: behindProxy, headers: map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.1"}, remote: "10.0.0.2:1234", want: "10.1.1.1"},
		{name: "real ip from trusted peer", resolver: behindProxy, headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, remote: "10.0.0.2:1234", want: "198.51.100.4"},
		{name: "remote addr ipv4", resolver: direct, remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "remote addr ipv6", resolver: direct, remote: "[::1]:5555", want: "::1"},
		{name: "remote addr without port", resolver: direct, remote: "192.0.2.9", want: "192.0.2.9"},
		{name: "missing remote addr", resolver: direct, remote: "", want: "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, tc.resolver.ClientIP(r))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.1.2.3/8", "::ffff:192.0.2.1"})
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.0.2.1/32", prefixes[1].String())

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestClientMetadata(t *testing.T) {
	var gotIP, gotUA string
	h := ClientMetadata(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:80"
	r.Header.Set("X-Forwarded-For", "203.0.113.99")
	r.Header.Set("User-Agent", "ghost-client/1.0")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "192.0.2.1", gotIP)
	assert.Equal(t, "ghost-client/1.0", gotUA)
}
