package email

import (
	"context"
)

type Service interface {
	SendPayoutPaid(ctx context.Context, to string, amountCents int64) error
	SendPayoutFailed(ctx context.Context, to string, reason string) error
}

// NoopService satisfies Service where no SMTP relay is configured, e.g. in
// tests and local development.
type NoopService struct{}

func (NoopService) SendPayoutPaid(context.Context, string, int64) error    { return nil }
func (NoopService) SendPayoutFailed(context.Context, string, string) error { return nil }
