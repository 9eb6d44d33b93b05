package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func unsignedToken(payload string) string {
	return "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func TestDefaultCredentialExtractorRoles(t *testing.T) {
	testCases := []struct {
		name   string
		claims map[string]interface{}
		admin  bool
	}{
		{"roles claim", map[string]interface{}{"uid": "u1", "roles": []interface{}{"admin", "viewer"}}, true},
		{"legacy flag", map[string]interface{}{"sub": "u2", "isAdmin": true}, true},
		{"no role", map[string]interface{}{"user_id": "u3", "roles": []interface{}{"viewer"}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds, err := DefaultCredentialExtractor(tc.claims)
			require.NoError(t, err)
			require.NotEmpty(t, creds.ID)
			require.Equal(t, tc.admin, creds.HasRole(RoleAdmin))
		})
	}
}

func TestDefaultCredentialExtractorRequiresSubject(t *testing.T) {
	_, err := DefaultCredentialExtractor(map[string]interface{}{"email": "a@b.test"})
	require.Error(t, err)

	_, err = DefaultCredentialExtractor(nil)
	require.Error(t, err)
}

func TestExtractJWTToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, found := ExtractJWTToken(r)
	require.False(t, found)

	r.Header.Set("Authorization", "bearer abc.def")
	token, found := ExtractJWTToken(r)
	require.True(t, found)
	require.Equal(t, "abc.def", token)

	r.Header.Set("Authorization", "Basic xyz")
	_, found = ExtractJWTToken(r)
	require.False(t, found)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := JWT(UnsignedTokenVerifier(), nil)(RequireRole(RoleAdmin)(ok))

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"operator without role", "Bearer " + unsignedToken(`{"uid":"u1","roles":["viewer"]}`), http.StatusForbidden},
		{"admin", "Bearer " + unsignedToken(`{"uid":"u1","roles":["admin"]}`), http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
