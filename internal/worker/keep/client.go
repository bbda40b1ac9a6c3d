// Package keep is the adapter to the external note service.
//
// Authentication calls return a master credential. Fetching notes requires
// an explicit Session obtained from Resume; the adapter keeps no state
// between calls.
package keep

import "context"

// Client is the note-service adapter used by the dispatcher.
type Client interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	ExchangeToken(ctx context.Context, email, oauthToken string) (string, error)
	MasterLogin(ctx context.Context, email, appPassword string) (string, error)
	Resume(ctx context.Context, email, masterToken string) (*Session, error)
	FetchNotes(ctx context.Context, session *Session, opts FetchOptions) ([]Note, error)
}

// Session is a short-lived authenticated handle for one sync.
type Session struct {
	Email       string
	MasterToken string
}

type FetchOptions struct {
	IncludeArchived bool
	IncludeTrashed  bool
}
