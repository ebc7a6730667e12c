package ledger

import (
	"context"
	"slices"
)

// Enumerator lists the clients that have history.
type Enumerator struct {
	Store Store
}

func NewEnumerator(store Store) *Enumerator {
	return &Enumerator{Store: store}
}

// Clients returns the distinct clients with at least one entry, ascending.
func (en *Enumerator) Clients(ctx context.Context) ([]ClientID, error) {
	clients, err := en.Store.ListClients(ctx)
	if err != nil {
		return nil, WrapStoreError("list clients", err)
	}
	clients = slices.Clone(clients)
	slices.Sort(clients)
	return slices.Compact(clients), nil
}
