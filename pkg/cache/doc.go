// Package cache allows clients to resume sessions with the vendor backend without logging in again.
//
// Logging in scrapes the identity provider's web pages and takes several round-trips. A
// [TokenCache] stores the token set of each account so that the next process can restore the
// session with [account.Account.RestoreToken]. If a cached token set has expired, the session
// refreshes it on first use; if the refresh token was revoked, the client has to log in again.
//
// The same TokenCache may safely hold token sets of several accounts.
//
// Token sets grant access to the account's vehicles. If a TokenCache is exported using its
// [TokenCache.Export] or [TokenCache.ExportToFile] methods, access controls should be used to
// prevent third parties from reading the data.
package cache
