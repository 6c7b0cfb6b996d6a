// Package server holds configuration for the HTTP server layer.
package server
