package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

// Subjects for payment notification events. A downstream push/email worker
// subscribes to gympay.notify.payment.> and fans out to devices.
const (
	SubjectPaymentDue       = "gympay.notify.payment.due"
	SubjectPaymentConfirmed = "gympay.notify.payment.confirmed"
	SubjectPaymentOverdue   = "gympay.notify.payment.overdue"
)

// Event is the wire format published for every notification.
type Event struct {
	UserID  string    `json:"user_id"`
	Amount  string    `json:"amount"`
	DueDate string    `json:"due_date,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// NATSDispatcher publishes notification events to NATS subjects.
// A nil connection degrades gracefully to a no-op so the payment core can
// run without a broker (mirrors how optional publishing is handled
// elsewhere in the stack).
type NATSDispatcher struct {
	nc *nats.Conn
}

var _ Dispatcher = (*NATSDispatcher)(nil)

// NewNATSDispatcher connects to the given NATS URL.
func NewNATSDispatcher(url string) (*NATSDispatcher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gympay-notify"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSDispatcher{nc: nc}, nil
}

// Close drains the connection.
func (d *NATSDispatcher) Close() {
	if d.nc != nil {
		d.nc.Close()
	}
}

func (d *NATSDispatcher) PaymentDue(_ context.Context, userID string, amount decimal.Decimal, dueDate time.Time) error {
	return d.publish(SubjectPaymentDue, Event{
		UserID:  userID,
		Amount:  amount.String(),
		DueDate: dueDate.Format("2006-01-02"),
		SentAt:  time.Now().UTC(),
	})
}

func (d *NATSDispatcher) PaymentConfirmed(_ context.Context, userID string, amount decimal.Decimal) error {
	return d.publish(SubjectPaymentConfirmed, Event{
		UserID: userID,
		Amount: amount.String(),
		SentAt: time.Now().UTC(),
	})
}

func (d *NATSDispatcher) PaymentOverdue(_ context.Context, userID string, amount decimal.Decimal) error {
	return d.publish(SubjectPaymentOverdue, Event{
		UserID: userID,
		Amount: amount.String(),
		SentAt: time.Now().UTC(),
	})
}

func (d *NATSDispatcher) publish(subject string, ev Event) error {
	if d.nc == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := d.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
