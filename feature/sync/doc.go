// Package sync implements inventory reconciliation between two connected
// stores.
//
// A sync run is a two-phase operation. Preview fetches both stores'
// inventory snapshots, diffs them by composite key and persists an ordered
// change plan without touching any remote system. Approval then applies that
// plan item by item against the target store, mirroring each remote write
// into local inventory and checkpointing progress so an interrupted run can
// resume from its first pending item.
//
// # Safety
//
// Two guardrails hold regardless of caller input: a plan whose removals
// exceed 10% of the target inventory converts those removals to skips unless
// large removals were explicitly allowed, and applies against a target store
// stop as soon as the channel's daily request budget is exhausted.
package sync
