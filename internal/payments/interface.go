package payments

import "context"

// Gateway defines the single operation the match processor needs from
// the payment provider. The concrete provider stays behind this
// interface; declines come back as *ChargeError, anything else as a
// plain error.
type Gateway interface {
	ChargeOffSession(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}
