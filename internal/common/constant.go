package common

// Cookie names used to deliver the session token pair.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

// AuthorizationHeaderName carries "Bearer <access token>" when cookies are not used.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName is echoed on every HTTP response.
const RequestIDHeaderName = "X-Request-ID"

// AuthenticateHeaderName carries InvalidTokenChallenge on a 401 caused by a
// missing or rejected access token, so clients can tell it apart from bad
// credentials.
const (
	AuthenticateHeaderName = "WWW-Authenticate"
	InvalidTokenChallenge  = `Bearer error="invalid_token"`
)
