// Package inventory implements the tenant's authoritative inventory records.
//
// Inventory items are identified by the composite business key (item_type,
// item_no, color_id, condition) in addition to their surrogate id. Each item
// can carry one external id mapping per connected store; the sync applier
// keeps those mappings current.
//
// Sync never hard-deletes an item: applying a remote removal zeroes
// qty_available so the record and its history survive.
package inventory
