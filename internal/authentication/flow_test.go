package authentication

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"

	"github.com/carnet-go/vehicle-command/pkg/connector/inet"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

const (
	testBase   = "https://api.example"
	testIssuer = "https://identity.example"
)

var testCreds = Credentials{Username: "user@example.com", Password: "hunter22"}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("Failed to sign token: %s", err)
	}
	return s
}

func redirect(location string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		rsp := httpmock.NewStringResponse(http.StatusFound, "")
		rsp.Header.Set("Location", location)
		return rsp, nil
	}
}

func htmlResponder(status int, body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		rsp := httpmock.NewStringResponse(status, body)
		rsp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return rsp, nil
	}
}

const singlePageLogin = `<html><body>
<form method="POST">
  <input type="hidden" name="state" value="state-123">
  <input type="text" name="username">
  <input type="password" name="password">
</form></body></html>`

// newTestFlow registers discovery, authorization, and token exchange responders. Tests register
// the login page responders.
func newTestFlow(t *testing.T) (*Flow, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	transport := inet.NewTransport(&http.Client{Transport: mock}, "")
	flow := NewFlow(transport, testBase)

	mock.RegisterResponder(http.MethodGet, testBase+openIDConfigPath,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{
			"issuer":                 testIssuer,
			"authorization_endpoint": testIssuer + "/authorize",
			"token_endpoint":         testIssuer + "/oauth/token",
		}))
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/authorize(\?|$)`,
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("redirect_uri") != "weconnect://authenticated" || q.Get("response_type") != "code" || q.Get("client_id") == "" {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad authorize request"), nil
			}
			rsp := httpmock.NewStringResponse(http.StatusFound, "")
			rsp.Header.Set("Location", "/u/login?state=state-123")
			rsp.Header.Add("Set-Cookie", "did=device-1; Path=/")
			return rsp, nil
		})
	exp := time.Now().Add(time.Hour)
	mock.RegisterResponder(http.MethodPost, testIssuer+"/oauth/token",
		func(req *http.Request) (*http.Response, error) {
			if err := req.ParseForm(); err != nil {
				return nil, err
			}
			if req.PostForm.Get("grant_type") != "authorization_code" || req.PostForm.Get("code") != "auth-code" {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"access_token":  signedJWT(t, exp),
				"id_token":      signedJWT(t, exp),
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		})
	return flow, mock
}

func TestLoginSinglePage(t *testing.T) {
	flow, mock := newTestFlow(t)
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login(\?|$)`, htmlResponder(http.StatusOK, singlePageLogin))
	mock.RegisterResponder(http.MethodPost, `=~^https://identity\.example/u/login(\?|$)`,
		func(req *http.Request) (*http.Response, error) {
			if c, err := req.Cookie("did"); err != nil || c.Value != "device-1" {
				return httpmock.NewStringResponse(http.StatusForbidden, "missing cookie"), nil
			}
			if req.URL.Query().Get("state") != "state-123" {
				return httpmock.NewStringResponse(http.StatusBadRequest, "missing state"), nil
			}
			if err := req.ParseForm(); err != nil {
				return nil, err
			}
			f := req.PostForm
			if f.Get("username") != testCreds.Username || f.Get("password") != testCreds.Password || f.Get("state") != "state-123" {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad form"), nil
			}
			return redirect("/authorize/resume?state=state-123")(req)
		})
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/authorize/resume`,
		redirect("weconnect://authenticated?code=auth-code&state=state-123"))

	set, err := flow.Login(context.Background(), testCreds)
	if err != nil {
		t.Fatalf("Login failed: %s", err)
	}
	if set.RefreshToken != "refresh-1" || set.TokenType != "Bearer" {
		t.Errorf("Unexpected token set %s", set)
	}
	if !set.Valid(time.Now(), token.DefaultSkew) {
		t.Error("Fresh token should be valid")
	}
}

func TestLoginTwoPage(t *testing.T) {
	flow, mock := newTestFlow(t)
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login(\?|$)`, htmlResponder(http.StatusOK, `
		<form action="/u/login/identifier?state=state-123" method="post">
			<input name="email" type="email"><input name="state" type="hidden" value="state-123">
		</form>`))
	mock.RegisterResponder(http.MethodPost, `=~^https://identity\.example/u/login/identifier`,
		func(req *http.Request) (*http.Response, error) {
			req.ParseForm()
			if req.PostForm.Get("email") != testCreds.Username || req.PostForm.Has("password") {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad identifier form"), nil
			}
			return redirect("/u/login/password?state=state-456")(req)
		})
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login/password`, htmlResponder(http.StatusOK, `
		<form method="post" action="/u/login/password?state=state-456">
			<input type="hidden" name="state" value="state-456">
			<input type="hidden" name="hmac" value="sig">
			<input type="password" name="password">
		</form>`))
	mock.RegisterResponder(http.MethodPost, `=~^https://identity\.example/u/login/password`,
		func(req *http.Request) (*http.Response, error) {
			req.ParseForm()
			f := req.PostForm
			if f.Get("password") != testCreds.Password || f.Get("hmac") != "sig" || f.Get("state") != "state-456" {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad password form"), nil
			}
			return redirect("weconnect://authenticated?code=auth-code")(req)
		})

	if _, err := flow.Login(context.Background(), testCreds); err != nil {
		t.Fatalf("Login failed: %s", err)
	}
}

func TestLoginErrorPages(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{
			name:     "wrong password",
			status:   http.StatusBadRequest,
			body:     `<span id="error-element-password" data-error-code="wrong-email-credentials">Wrong email or password</span>`,
			expected: protocol.ErrInvalidCredentials,
		},
		{
			name:     "account locked",
			status:   http.StatusBadRequest,
			body:     `<span id="error-element-username" data-error-code="account-locked">Locked</span>`,
			expected: protocol.ErrAccountLocked,
		},
		{
			name:     "unknown 400",
			status:   http.StatusBadRequest,
			body:     `<p>Something went wrong</p>`,
			expected: protocol.ErrUnexpectedResponseShape,
		},
		{
			name:     "re-rendered form",
			status:   http.StatusOK,
			body:     `<form><input type="hidden" name="state" value="x"><input name="username"><span id="error-element-password" data-error-code="wrong-credentials"></span></form>`,
			expected: protocol.ErrInvalidCredentials,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			flow, mock := newTestFlow(t)
			mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login(\?|$)`, htmlResponder(http.StatusOK, singlePageLogin))
			mock.RegisterResponder(http.MethodPost, `=~^https://identity\.example/u/login(\?|$)`, htmlResponder(c.status, c.body))
			_, err := flow.Login(context.Background(), testCreds)
			if !errors.Is(err, c.expected) {
				t.Errorf("Expected %s, got %v", c.expected, err)
			}
		})
	}
}

func TestLoginTermsAndConditions(t *testing.T) {
	flow, mock := newTestFlow(t)
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login(\?|$)`, htmlResponder(http.StatusOK, singlePageLogin))
	mock.RegisterResponder(http.MethodPost, `=~^https://identity\.example/u/login(\?|$)`, redirect("/terms"))
	mock.RegisterResponder(http.MethodGet, testIssuer+"/terms",
		htmlResponder(http.StatusOK, `<script>window.state={"page":"termsAndConditions"}</script>`))

	_, err := flow.Login(context.Background(), testCreds)
	if !errors.Is(err, protocol.ErrConsentRequired) {
		t.Errorf("Expected consent required, got %v", err)
	}
}

func TestLoginAuthorizeError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	flow := NewFlow(inet.NewTransport(&http.Client{Transport: mock}, ""), testBase)
	mock.RegisterResponder(http.MethodGet, testBase+openIDConfigPath,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{
			"issuer":                 testIssuer,
			"authorization_endpoint": testIssuer + "/authorize",
			"token_endpoint":         testIssuer + "/oauth/token",
		}))
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/authorize`,
		redirect("weconnect://authenticated?error=consent_required&error_description=Consent+missing"))

	_, err := flow.Login(context.Background(), testCreds)
	if !errors.Is(err, protocol.ErrConsentRequired) {
		t.Errorf("Expected consent required, got %v", err)
	}
}

func TestLoginMissingState(t *testing.T) {
	flow, mock := newTestFlow(t)
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login(\?|$)`,
		htmlResponder(http.StatusOK, `<form><input name="username"><input name="password" type="password"></form>`))
	_, err := flow.Login(context.Background(), testCreds)
	if !errors.Is(err, protocol.ErrUnexpectedResponseShape) {
		t.Errorf("Expected unexpected response shape, got %v", err)
	}
}

func TestLoginRedirectLoop(t *testing.T) {
	flow, mock := newTestFlow(t)
	mock.RegisterResponder(http.MethodGet, `=~^https://identity\.example/u/login(\?|$)`, htmlResponder(http.StatusOK, singlePageLogin))
	mock.RegisterResponder(http.MethodPost, `=~^https://identity\.example/u/login(\?|$)`, redirect("/loop"))
	mock.RegisterResponder(http.MethodGet, testIssuer+"/loop", redirect("/loop"))

	_, err := flow.Login(context.Background(), testCreds)
	if !errors.Is(err, protocol.ErrUnexpectedResponseShape) {
		t.Errorf("Expected redirect loop to fail, got %v", err)
	}
	if n := mock.GetCallCountInfo()["GET "+testIssuer+"/loop"]; n != 10 {
		t.Errorf("Expected 10 redirect hops, got %d", n)
	}
}

func TestLoginNetworkError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	flow := NewFlow(inet.NewTransport(&http.Client{Transport: mock}, ""), testBase)
	mock.RegisterResponder(http.MethodGet, testBase+openIDConfigPath, httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := flow.Login(context.Background(), testCreds)
	if !errors.Is(err, protocol.ErrAuthNetwork) {
		t.Errorf("Expected network error, got %v", err)
	}
	if !protocol.Temporary(err) {
		t.Error("Network errors should be temporary")
	}
}

func TestRefreshInheritsTokens(t *testing.T) {
	mock := httpmock.NewMockTransport()
	flow := NewFlow(inet.NewTransport(&http.Client{Transport: mock}, ""), testBase)
	exp := time.Now().Add(time.Hour)
	mock.RegisterResponder(http.MethodPost, testBase+refreshPath,
		func(req *http.Request) (*http.Response, error) {
			req.ParseForm()
			if req.PostForm.Get("grant_type") != "refresh_token" || req.PostForm.Get("refresh_token") != "refresh-1" {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"access_token": signedJWT(t, exp),
				"token_type":   "Bearer",
			})
		})

	current := &token.Set{AccessToken: "old", IDToken: "id-1", RefreshToken: "refresh-1", ExpiresAt: time.Now()}
	set, err := flow.Refresh(context.Background(), current)
	if err != nil {
		t.Fatalf("Refresh failed: %s", err)
	}
	if set.RefreshToken != "refresh-1" || set.IDToken != "id-1" {
		t.Errorf("Refresh did not inherit tokens: %+v", set)
	}

	_, err = flow.Refresh(context.Background(), &token.Set{AccessToken: "old", RefreshToken: "revoked"})
	if !errors.Is(err, protocol.ErrInvalidCredentials) {
		t.Errorf("Expected rejected refresh token, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	mock := httpmock.NewMockTransport()
	flow := NewFlow(inet.NewTransport(&http.Client{Transport: mock}, ""), testBase)
	mock.RegisterResponder(http.MethodPost, testBase+revokePath,
		func(req *http.Request) (*http.Response, error) {
			req.ParseForm()
			if req.PostForm.Get("token") != "refresh-1" {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})
	if err := flow.Revoke(context.Background(), &token.Set{AccessToken: "a", RefreshToken: "refresh-1"}); err != nil {
		t.Errorf("Revoke failed: %s", err)
	}
}
