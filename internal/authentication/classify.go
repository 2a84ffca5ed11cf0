package authentication

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

var (
	consentMarkers = []string{"termsAndConditions", `"page":"consent"`, "consent-required", "/consent"}
	lockedMarkers  = []string{"account-locked", "accountLocked", "too many"}

	credentialErrorCodes = []string{"wrong-email-credentials", "wrong-credentials", "invalid-credentials"}
	lockedErrorCodes     = []string{"account-locked", "too-many-attempts"}

	errorElements = []string{"error-element-username", "error-element-password", "error-element-email"}
)

func containsAny(body []byte, markers []string) bool {
	for _, m := range markers {
		if bytes.Contains(body, []byte(m)) {
			return true
		}
	}
	return false
}

// classifyPage maps an HTML page returned in place of a redirect to an AuthError. The result is
// never nil.
func classifyPage(status int, body []byte) *protocol.AuthError {
	for _, code := range errorCodes(body, errorElements...) {
		switch {
		case matchesAny(code, credentialErrorCodes):
			return protocol.NewAuthError(protocol.AuthInvalidCredentials, "wrong username or password", nil)
		case matchesAny(code, lockedErrorCodes):
			return protocol.NewAuthError(protocol.AuthAccountLocked, code, nil)
		}
	}
	if containsAny(body, lockedMarkers) {
		return protocol.NewAuthError(protocol.AuthAccountLocked, "identity provider reports the account is locked", nil)
	}
	if containsAny(body, consentMarkers) {
		return protocol.NewAuthError(protocol.AuthConsentRequired,
			"log in through the vendor portal and accept the updated terms", nil)
	}
	if status == 400 {
		return protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "login form rejected with unrecognized error", nil)
	}
	return protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, "login page without redirect", nil)
}

// classifyRedirectError maps an OAuth error carried in a redirect query to an AuthError. Returns nil
// if the URL carries no error.
func classifyRedirectError(u *url.URL) *protocol.AuthError {
	query := u.Query()
	code := query.Get("error")
	if code == "" {
		return nil
	}
	description := query.Get("error_description")
	message := code
	if description != "" {
		message += ": " + description
	}
	switch code {
	case "consent_required", "interaction_required":
		return protocol.NewAuthError(protocol.AuthConsentRequired, message, nil)
	case "access_denied":
		if strings.Contains(strings.ToLower(description), "lock") {
			return protocol.NewAuthError(protocol.AuthAccountLocked, message, nil)
		}
	}
	return protocol.NewAuthError(protocol.AuthUnexpectedResponseShape, message, nil)
}
