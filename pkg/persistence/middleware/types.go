package middleware

import "github.com/aretw0/intake/pkg/ports"

// Middleware allows wrapping a DraftStore to add behavior.
type Middleware func(ports.DraftStore) ports.DraftStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.DraftStore, mws ...Middleware) ports.DraftStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
