// Package client talks to the account server over its HTTP API.
//
// HTTPClient keeps the session token pair returned by login, sends the
// access token as a bearer header, and on a 401 from a protected route
// refreshes the pair once and retries the call. Cookies set by the server
// are kept in a cookie jar as well.
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotLoggedIn. Other
// failures come back as *APIError.
package client
