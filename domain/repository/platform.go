package repository

import (
	"context"

	"social-agent/domain/model"
)

// ISocialPlatform is the capability set each social platform client implements.
// The wire protocol behind each method differs per platform; the contract does not.
type ISocialPlatform interface {
	// Name returns the platform identifier used in requests and outcomes.
	Name() string

	// IsAuthenticated loads the persisted credential if needed and verifies it with
	// a live call against the platform's identity endpoint. It fails closed: any
	// I/O or network error yields false, never an error.
	IsAuthenticated(ctx context.Context) bool

	// AuthURL builds the OAuth authorization redirect URL.
	AuthURL(ctx context.Context) (string, error)

	// ExchangeCode completes the OAuth flow for an authorization code. state is
	// only meaningful for platforms that issue a CSRF nonce with AuthURL.
	ExchangeCode(ctx context.Context, code, state string) error

	// Publish uploads the asset with the caption. Failures are reported through
	// the outcome value; Publish never returns an error.
	Publish(ctx context.Context, asset *model.MediaAsset, caption string) model.PublishOutcome
}
