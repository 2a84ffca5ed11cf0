// Package connector defines constants shared by the packages that talk to the vendor backend.
//
// The values identify this client as the vendor's mobile application. The identity provider and the
// API gateway reject requests that do not present them.
package connector

import (
	"net/http"
)

// MaxResponseLength caps the maximum byte-length of responses that connectors must support.
// Selective status documents for a fully equipped vehicle are the largest payloads.
const MaxResponseLength = 4 << 20

// MaxRedirects bounds the number of redirect hops followed manually during login.
const MaxRedirects = 10

const (
	// DefaultBaseURL is the API gateway used for both identity and vehicle endpoints.
	DefaultBaseURL = "https://emea.bff.cariad.digital"

	// ClientID is the OAuth client id of the vendor mobile application.
	ClientID = "a24fba63-34b3-4d43-b181-942111e6bda8@apps_vw-dilab_com"

	// RedirectURI is the custom-scheme URL the identity provider redirects to once login succeeds.
	// The authorization code is carried in its query.
	RedirectURI = "weconnect://authenticated"

	// Scope requested during authorization.
	Scope = "openid profile badge cars dealers vin"

	// ResponseType requested during authorization.
	ResponseType = "code"

	// AndroidPackageName is sent in the x-android-package-name header.
	AndroidPackageName = "com.volkswagen.weconnect"

	// AppUserAgent is the user agent of the vendor mobile application.
	AppUserAgent = "Volkswagen/3.51.1-android/14"
)

// APIHeaders returns the headers sent with every authenticated API request.
func APIHeaders(userAgent string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("Accept-Charset", "UTF-8")
	h.Set("User-Agent", userAgent)
	h.Set("tokentype", "IDK_TECHNICAL")
	h.Set("x-android-package-name", AndroidPackageName)
	return h
}

// AuthHeaders returns the headers sent with identity provider requests made while logging in.
func AuthHeaders(userAgent string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("User-Agent", userAgent)
	h.Set("x-android-package-name", AndroidPackageName)
	return h
}

// PendingRequest is an entry of a vehicle's pending request list.
type PendingRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
