// Package audit records before/after state for every local mutation.
//
// The Recorder writes one Log row per mutation, stamped with the acting
// identity from the request-scoped Context. The sync applier emits one entry
// per inventory record it touches so every applied plan item is traceable.
package audit
