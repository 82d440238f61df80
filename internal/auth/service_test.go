package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc := NewService("s3cret", "hearthguard")
	token, err := svc.Issue(Principal{MemberID: "m-1", FederationID: "fed-1"}, time.Minute)
	require.NoError(t, err)

	p, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "m-1", p.MemberID)
	require.Equal(t, "fed-1", p.FederationID)
}

func TestVerifyRejectsWrongSecretAndExpiry(t *testing.T) {
	issuer := NewService("one", "hearthguard")
	token, err := issuer.Issue(Principal{MemberID: "m-1", FederationID: "fed-1"}, time.Minute)
	require.NoError(t, err)

	_, err = NewService("two", "hearthguard").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := NewService("one", "hearthguard")
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue(Principal{MemberID: "m-1", FederationID: "fed-1"}, time.Minute)
	require.NoError(t, err)
	_, err = issuer.Verify(old)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Verify("  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddlewareInjectsPrincipal(t *testing.T) {
	svc := NewService("s3cret", "")
	token, err := svc.Issue(Principal{MemberID: "m-9", FederationID: "fed-2"}, time.Minute)
	require.NoError(t, err)

	var seen Principal
	h := Middleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "m-9", seen.MemberID)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
}
