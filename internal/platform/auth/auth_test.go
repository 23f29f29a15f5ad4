package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, subject, role string) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func invokeWithToken(t *testing.T, token string, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return JWTMiddleware(testSecret)(handler)(c)
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, "patient-1", "patient")

	var got Actor
	err := invokeWithToken(t, token, func(c echo.Context) error {
		got, _ = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "patient-1" {
		t.Errorf("expected actor id patient-1, got %s", got.ID)
	}
	if got.Role != RolePatient {
		t.Errorf("expected role patient, got %s", got.Role)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := invokeWithToken(t, "", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	token := signToken(t, "user-1", "janitor")
	err := invokeWithToken(t, token, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown role, got %v", err)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "patient-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: "patient",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	err = invokeWithToken(t, signed, func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %v", err)
	}
}

func requireRoleInvoke(t *testing.T, actor *Actor, required ...Role) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		req = req.WithContext(WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	return RequireRole(required...)(handler)(c)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name     string
		actor    *Actor
		required []Role
		wantCode int // 0 means allowed
	}{
		{"doctor allowed", &Actor{ID: "d1", Role: RoleDoctor}, []Role{RoleDoctor}, 0},
		{"admin always allowed", &Actor{ID: "a1", Role: RoleAdmin}, []Role{RoleDoctor}, 0},
		{"patient forbidden", &Actor{ID: "p1", Role: RolePatient}, []Role{RoleDoctor}, http.StatusForbidden},
		{"no actor", nil, []Role{RoleDoctor}, http.StatusUnauthorized},
		{"either role", &Actor{ID: "p1", Role: RolePatient}, []Role{RoleDoctor, RolePatient}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := requireRoleInvoke(t, tc.actor, tc.required...)
			if tc.wantCode == 0 {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %v", tc.wantCode, err)
			}
		})
	}
}
