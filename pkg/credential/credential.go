package credential

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var ErrNoCredential = errors.New("no calendar credential available for user")

// Provider resolves the calendar API credential for the user carried on the
// request context. Token acquisition, refresh and storage belong to the
// fronting auth service; this engine only consumes a ready token source.
type Provider interface {
	Resolve(ctx context.Context) (oauth2.TokenSource, error)
}
