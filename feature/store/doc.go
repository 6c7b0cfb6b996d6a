// Package store implements marketplace connection management.
//
// A Store is a tenant's configured link to one external marketplace channel
// (BrickLink, BrickOwl, Shopify, ...). Each store carries a free-form settings
// document and a SyncState row tracking the last inventory sync and the
// persisted per-channel rate limit budget.
//
// # Rate Limiting
//
// RateLimitTracker enforces a soft daily request budget per channel. Entries
// are created lazily, reset after 24 hours, and persisted in the store's
// SyncState. The sync applier consults the tracker before every remote call.
//
// # HTTP Endpoints
//
//   - POST /stores        : Create a store connection.
//   - GET  /stores        : List the tenant's stores.
//   - GET  /stores/:id    : Get one store.
package store
