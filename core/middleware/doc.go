// Package middleware groups the HTTP middleware used by the server:
// rayid (request correlation ids) and auth (API key protection).
package middleware
