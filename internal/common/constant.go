// Package common contains shared constants and sentinel errors used across
// taskkeeper components.
package common

// AuthorizationHeaderName is the HTTP header carrying the session token on
// authenticated requests.
const AuthorizationHeaderName = "Authorization"

// TokenScheme prefixes the token inside the Authorization header
// ("Authorization: Token <token>").
const TokenScheme = "Token"

// PlatformHeaderName tells the backend which kind of client is calling.
const PlatformHeaderName = "X-Platform"
