// Package connector defines the marketplace integration contract used by the
// sync engine.
//
// An Adapter can enumerate a store's inventory as a flat snapshot and apply a
// single create/update/remove operation against the remote marketplace. The
// sync engine depends only on the Adapter interface; concrete integrations
// are resolved per channel through ForStore.
//
// # Item Identity
//
// Items are joined across marketplaces by the composite key (item_type,
// item_no, color_id, condition). The marketplace-assigned external id is
// carried alongside and is required to target the correct remote record on
// updates and removals.
package connector
