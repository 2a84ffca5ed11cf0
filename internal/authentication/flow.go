// Package authentication obtains OAuth tokens from the vendor identity provider.
//
// The identity provider offers no programmatic login. [Flow] signs in the way the vendor's mobile
// application does: it walks the authorization-code flow like a browser, scrapes the login forms,
// submits the credentials, and follows redirects until the identity provider hands out an
// authorization code on the application's custom URL scheme.
package authentication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/connector"
	"github.com/carnet-go/vehicle-command/pkg/connector/inet"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

const (
	openIDConfigPath = "/login/v1/idk/openid-configuration"
	refreshPath      = "/login/v1/idk/token"
	revokePath       = "/login/v1/idk/revoke"
)

// Credentials are the user's vendor account credentials. They are only held in memory.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("%s:%s", c.Username, log.Redact(c.Password))
}

type openIDConfig struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

// Flow performs login, token refresh, and token revocation.
type Flow struct {
	BaseURL     string
	ClientID    string
	RedirectURI string
	Scope       string

	transport *inet.Transport
	now       func() time.Time

	lock   sync.Mutex
	config *openIDConfig
}

// NewFlow returns a Flow that talks to baseURL through transport. If baseURL is empty,
// [connector.DefaultBaseURL] is used.
func NewFlow(transport *inet.Transport, baseURL string) *Flow {
	if baseURL == "" {
		baseURL = connector.DefaultBaseURL
	}
	return &Flow{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		ClientID:    connector.ClientID,
		RedirectURI: connector.RedirectURI,
		Scope:       connector.Scope,
		transport:   transport,
		now:         time.Now,
	}
}

func networkError(err error) error {
	var authErr *protocol.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return protocol.NewAuthError(protocol.AuthNetworkError, "", err)
}

func shapeError(format string, a ...interface{}) error {
	return protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, fmt.Sprintf(format, a...), nil)
}

func (f *Flow) headers() http.Header {
	return connector.AuthHeaders(f.transport.UserAgent)
}

func (f *Flow) discover(ctx context.Context) (*openIDConfig, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.config != nil {
		return f.config, nil
	}
	rsp, err := f.transport.Get(ctx, f.BaseURL+openIDConfigPath, f.headers())
	if err != nil {
		return nil, networkError(err)
	}
	if rsp.StatusCode != http.StatusOK {
		return nil, shapeError("openid configuration returned %d", rsp.StatusCode)
	}
	var config openIDConfig
	if err := json.Unmarshal(rsp.Body, &config); err != nil {
		return nil, protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "openid configuration", err)
	}
	if config.AuthorizationEndpoint == "" || config.TokenEndpoint == "" || config.Issuer == "" {
		return nil, shapeError("openid configuration is missing endpoints")
	}
	f.config = &config
	return f.config, nil
}

// Login signs in with creds and returns a new token set.
func (f *Flow) Login(ctx context.Context, creds Credentials) (*token.Set, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, protocol.NewAuthError(protocol.AuthInvalidCredentials, "username and password are required", nil)
	}
	log.Info("Logging in as %s", creds.Username)
	f.transport.ClearCookies()

	config, err := f.discover(ctx)
	if err != nil {
		return nil, err
	}
	code, err := f.authorize(ctx, config, creds)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"client_id":    {f.ClientID},
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {f.RedirectURI},
	}
	rsp, err := f.requestToken(ctx, config.TokenEndpoint, form)
	if err != nil {
		return nil, err
	}
	if rsp.AccessToken == "" || rsp.IDToken == "" || rsp.TokenType == "" {
		return nil, shapeError("token response is missing required fields")
	}
	set, err := token.FromResponse(rsp, nil, f.now())
	if err != nil {
		return nil, protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "token response", err)
	}
	log.Info("Login succeeded, token expires %s", set.ExpiresAt.Format(time.RFC3339))
	return set, nil
}

// authorize walks the login pages and returns the authorization code.
func (f *Flow) authorize(ctx context.Context, config *openIDConfig, creds Credentials) (string, error) {
	authURL, err := url.Parse(config.AuthorizationEndpoint)
	if err != nil {
		return "", shapeError("invalid authorization endpoint: %s", err)
	}
	query := authURL.Query()
	query.Set("redirect_uri", f.RedirectURI)
	query.Set("response_type", connector.ResponseType)
	query.Set("client_id", f.ClientID)
	query.Set("scope", f.Scope)
	authURL.RawQuery = query.Encode()

	rsp, err := f.transport.Get(ctx, authURL.String(), f.headers())
	if err != nil {
		return "", networkError(err)
	}
	if !rsp.IsRedirect() {
		return "", shapeError("authorization endpoint returned %d without redirect", rsp.StatusCode)
	}
	page, final, err := f.follow(ctx, rsp)
	if err != nil {
		return "", err
	}
	if final != nil {
		// The identity provider still had a session for this client.
		return authorizationCode(final)
	}

	form, err := parseLoginForm(page.Body, page.Request.URL)
	if err != nil {
		if errors.Is(err, errNoLoginForm) {
			authErr := classifyPage(page.StatusCode, page.Body)
			if authErr.Kind != protocol.AuthUnexpectedResponseShape {
				return "", authErr
			}
		}
		return "", protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "login page", err)
	}

	if !form.HasPassword() {
		// Two-page variant: submit the identifier, then scrape the password page.
		log.Debug("Submitting identifier form")
		rsp, err = f.submit(ctx, form, config, form.Values(creds.Username, ""))
		if err != nil {
			return "", err
		}
		page, final, err = f.follow(ctx, rsp)
		if err != nil {
			return "", err
		}
		if final != nil {
			return authorizationCode(final)
		}
		form, err = parseLoginForm(page.Body, page.Request.URL)
		if err != nil || !form.HasPassword() {
			return "", classifyPage(page.StatusCode, page.Body)
		}
	}

	log.Debug("Submitting password form")
	rsp, err = f.submit(ctx, form, config, form.Values(creds.Username, creds.Password))
	if err != nil {
		return "", err
	}
	page, final, err = f.follow(ctx, rsp)
	if err != nil {
		return "", err
	}
	if final == nil {
		return "", classifyPage(page.StatusCode, page.Body)
	}
	return authorizationCode(final)
}

// submit posts a login form. HTTP 400 responses are classified; the identity provider uses them to
// report form validation failures.
func (f *Flow) submit(ctx context.Context, form *loginForm, config *openIDConfig, values url.Values) (*inet.Response, error) {
	action := form.Action
	if action == nil {
		fallback, err := url.Parse(strings.TrimSuffix(config.Issuer, "/") + "/u/login")
		if err != nil {
			return nil, shapeError("invalid issuer: %s", err)
		}
		q := fallback.Query()
		q.Set("state", form.State())
		fallback.RawQuery = q.Encode()
		action = fallback
	}
	rsp, err := f.transport.PostForm(ctx, action.String(), values, f.headers())
	if err != nil {
		return nil, networkError(err)
	}
	switch {
	case rsp.IsRedirect(), rsp.StatusCode == http.StatusOK:
		return rsp, nil
	case rsp.StatusCode == http.StatusBadRequest:
		return nil, classifyPage(rsp.StatusCode, rsp.Body)
	case rsp.StatusCode == http.StatusTooManyRequests || rsp.StatusCode >= 500:
		return nil, networkError(rsp.Err())
	default:
		return nil, shapeError("login form submission returned %d", rsp.StatusCode)
	}
}

// follow chases Location headers starting at rsp. It returns either the first page that is not a
// redirect, or the final URL once the application's redirect URI is reached.
func (f *Flow) follow(ctx context.Context, rsp *inet.Response) (*inet.Response, *url.URL, error) {
	for hops := 0; ; hops++ {
		if !rsp.IsRedirect() {
			if rsp.StatusCode != http.StatusOK {
				return nil, nil, shapeError("login page returned %d", rsp.StatusCode)
			}
			return rsp, nil, nil
		}
		next, err := rsp.Location()
		if err != nil {
			return nil, nil, protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "redirect", err)
		}
		if next == nil {
			return nil, nil, shapeError("redirect without location")
		}
		if authErr := classifyRedirectError(next); authErr != nil {
			return nil, nil, authErr
		}
		if strings.HasPrefix(next.String(), f.RedirectURI) {
			return nil, next, nil
		}
		if hops >= connector.MaxRedirects {
			return nil, nil, shapeError("too many redirects during login")
		}
		rsp, err = f.transport.Get(ctx, next.String(), f.headers())
		if err != nil {
			return nil, nil, networkError(err)
		}
	}
}

func authorizationCode(final *url.URL) (string, error) {
	code := final.Query().Get("code")
	if code == "" {
		// Some identity provider versions return the code in the fragment.
		if fragment, err := url.ParseQuery(final.Fragment); err == nil {
			code = fragment.Get("code")
		}
	}
	if code == "" {
		return "", shapeError("redirect to application did not include an authorization code")
	}
	return code, nil
}

func (f *Flow) requestToken(ctx context.Context, endpoint string, form url.Values) (*token.Response, error) {
	header := f.headers()
	header.Set("Accept", "application/json")
	rsp, err := f.transport.PostForm(ctx, endpoint, form, header)
	if err != nil {
		return nil, networkError(err)
	}
	switch {
	case rsp.StatusCode == http.StatusOK:
	case rsp.StatusCode == http.StatusBadRequest || rsp.StatusCode == http.StatusUnauthorized:
		return nil, protocol.NewAuthError(protocol.AuthInvalidCredentials, "token endpoint rejected grant", rsp.Err())
	case rsp.StatusCode == http.StatusTooManyRequests || rsp.StatusCode >= 500:
		return nil, networkError(rsp.Err())
	default:
		return nil, shapeError("token endpoint returned %d", rsp.StatusCode)
	}
	var result token.Response
	if err := json.Unmarshal(rsp.Body, &result); err != nil {
		return nil, protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "token response", err)
	}
	return &result, nil
}

// Refresh exchanges the refresh token of current for a new token set. Values missing from the
// response are inherited from current.
func (f *Flow) Refresh(ctx context.Context, current *token.Set) (*token.Set, error) {
	if !current.CanRefresh() {
		return nil, protocol.NewAuthError(protocol.AuthInvalidCredentials, "no refresh token", nil)
	}
	log.Debug("Refreshing token %s", current)
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
		"client_id":     {f.ClientID},
	}
	rsp, err := f.requestToken(ctx, f.BaseURL+refreshPath, form)
	if err != nil {
		return nil, err
	}
	set, err := token.FromResponse(rsp, current, f.now())
	if err != nil {
		return nil, protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "refresh response", err)
	}
	log.Info("Token refreshed, expires %s", set.ExpiresAt.Format(time.RFC3339))
	return set, nil
}

// Revoke invalidates the refresh token of current. Revocation is best effort: the vendor answers
// 200 even for unknown tokens.
func (f *Flow) Revoke(ctx context.Context, current *token.Set) error {
	if current == nil {
		return nil
	}
	value := current.RefreshToken
	if value == "" {
		value = current.AccessToken
	}
	rsp, err := f.transport.PostForm(ctx, f.BaseURL+revokePath, url.Values{"token": {value}}, f.headers())
	if err != nil {
		return networkError(err)
	}
	if err := rsp.Err(); err != nil {
		return fmt.Errorf("token revocation failed: %w", err)
	}
	return nil
}
