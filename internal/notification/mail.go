package notification

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends a short settlement notice to the operations mailbox.
type Mailer struct {
	dialer Dialer
	from   string
	to     string
}

func NewMailer(dialer Dialer, from, to string) *Mailer {
	return &Mailer{dialer: dialer, from: from, to: to}
}

func NewSMTPDialer(host string, port int, user, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, user, password)
}

func (m *Mailer) PaymentSettled(_ context.Context, ev PaymentSettled) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.from, "Meal subscriptions"))
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", fmt.Sprintf("Payment settled: %s #%d", ev.OrderType, ev.OrderID))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Order %s #%d was paid.\n\nAmount: %s %s\nGateway: %s\nSession: %s\nTransaction: %d\nDelivery items: %d\nSettled at: %s\n",
		ev.OrderType, ev.OrderID, ev.Amount.StringFixed(3), ev.Currency, ev.Gateway, ev.SessionID, ev.TransactionID, ev.ItemsCreated, ev.SettledAt.Format("2006-01-02 15:04:05 MST"),
	))
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send settlement mail: %w", err)
	}
	return nil
}
