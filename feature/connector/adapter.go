package connector

import "context"

// Adapter is the contract a marketplace integration must fulfil for inventory
// synchronization. Implementations own timeout and retry behavior for their
// remote API; the sync engine never retries on its own.
type Adapter interface {
	// FetchInventory enumerates every inventory record of the connection as a
	// flat snapshot.
	FetchInventory(ctx context.Context) ([]Item, error)

	// ApplyChange applies a single create/update/remove operation and returns
	// the item as committed remotely, including any newly assigned external id
	// for ADD.
	ApplyChange(ctx context.Context, action Action, item Item) (Item, error)

	// TestConnection verifies the connection's credentials and reachability.
	TestConnection(ctx context.Context) (bool, error)
}
