// Package auth issues and validates the bearer tokens that guard the
// device API.
//
// Tokens are HS256 JWTs carrying a subject and one of three roles:
//   - viewer: read devices and state history
//   - operator: viewer plus create, update and replace
//   - admin: operator plus delete
//
// Role permissions are a static mapping (no database lookup). Tokens are
// validated by signature and expiry only.
package auth
