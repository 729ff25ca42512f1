package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/homebase/referral-api/internal/config"
)

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPService builds the gomail-backed sender used in production.
func NewSMTPService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendPayoutPaid(ctx context.Context, to string, amountCents int64) error {
	subject := "Your HomeBase referral commission was paid"
	body := fmt.Sprintf(
		"Good news! Your referral commission of $%.2f has been transferred to your account.",
		float64(amountCents)/100,
	)
	return s.send(ctx, to, subject, body)
}

func (s *smtpService) SendPayoutFailed(ctx context.Context, to string, reason string) error {
	subject := "Problem with your HomeBase referral commission"
	body := fmt.Sprintf(
		"We could not complete your referral commission transfer: %s. Our team is looking into it.",
		reason,
	)
	return s.send(ctx, to, subject, body)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
