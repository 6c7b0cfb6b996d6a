// Package utils provides small shared helpers: JSON column types for GORM
// models and conversion between JSON-shaped values.
package utils
