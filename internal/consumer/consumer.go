package consumer

import (
	"context"
)

type MessageConsumer interface {
	Start(ctx context.Context) error

	Stop()
}

// RequestProcessor handles raw message bodies. A returned error means the
// message must be rejected.
type RequestProcessor interface {
	ProcessGenRequest(body []byte) error

	ProcessDelRequest(body []byte) error
}
