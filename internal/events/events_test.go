package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeliverer struct {
	receipts []domain.PaymentReceipt
	welcomes []domain.Welcome
	err      error
}

func (f *fakeDeliverer) SendPaymentReceipt(ctx context.Context, r domain.PaymentReceipt) error {
	f.receipts = append(f.receipts, r)
	return f.err
}

func (f *fakeDeliverer) SendWelcome(ctx context.Context, w domain.Welcome) error {
	f.welcomes = append(f.welcomes, w)
	return f.err
}

type ackResult struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackResult) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackResult) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *ackResult) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// capturePublisher records encoded envelopes
type capturePublisher struct {
	bodies map[string][]byte
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, event string, data any) error {
	if p.err != nil {
		return p.err
	}
	body, err := encodeEnvelope(event, data, time.Now().UTC())
	if err != nil {
		return err
	}
	if p.bodies == nil {
		p.bodies = make(map[string][]byte)
	}
	p.bodies[event] = body
	return nil
}

var receipt = domain.PaymentReceipt{
	Recipient:     domain.Recipient{UserID: "u1", Email: "asha@example.com", FirstName: "Asha"},
	PackageName:   "Gold",
	Amount:        449900,
	Currency:      "INR",
	TransactionID: "order_1",
}

func TestQueuedEventsReachDeliverer(t *testing.T) {
	pub := &capturePublisher{}
	d := NewQueueDispatcher(pub)

	d.PaymentSucceeded(context.Background(), receipt)
	d.UserActivated(context.Background(), domain.Welcome{Recipient: receipt.Recipient})

	deliverer := &fakeDeliverer{}
	h := NewNotificationHandler(deliverer)

	require.NoError(t, h.Handle(context.Background(), domain.EventPaymentSucceeded, pub.bodies[domain.EventPaymentSucceeded]))
	require.NoError(t, h.Handle(context.Background(), domain.EventUserActivated, pub.bodies[domain.EventUserActivated]))

	require.Len(t, deliverer.receipts, 1)
	assert.Equal(t, receipt, deliverer.receipts[0])
	require.Len(t, deliverer.welcomes, 1)
	assert.Equal(t, "asha@example.com", deliverer.welcomes[0].Recipient.Email)
}

func TestQueueDispatcherSwallowsPublishErrors(t *testing.T) {
	d := NewQueueDispatcher(&capturePublisher{err: errors.New("connection closed")})
	assert.NotPanics(t, func() {
		d.PaymentSucceeded(context.Background(), receipt)
	})
}

func TestHandlerRejectsMalformedEvents(t *testing.T) {
	h := NewNotificationHandler(&fakeDeliverer{})

	err := h.Handle(context.Background(), domain.EventPaymentSucceeded, []byte("not json"))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = h.Handle(context.Background(), domain.EventPaymentSucceeded, []byte(`{"event":"payment.succeeded","version":9,"data":{}}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	err = h.Handle(context.Background(), domain.EventPaymentSucceeded, []byte(`{"event":"payment.succeeded","version":1,"data":{"transaction_id":"order_1"}}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestHandlerIgnoresUnknownEvents(t *testing.T) {
	h := NewNotificationHandler(&fakeDeliverer{})
	assert.NoError(t, h.Handle(context.Background(), "booking.created", []byte(`{"version":1,"data":{}}`)))
}

func TestProcessAcknowledgement(t *testing.T) {
	pub := &capturePublisher{}
	NewQueueDispatcher(pub).PaymentSucceeded(context.Background(), receipt)
	body := pub.bodies[domain.EventPaymentSucceeded]

	t.Run("delivered", func(t *testing.T) {
		ack := &ackResult{}
		process(context.Background(), NewNotificationHandler(&fakeDeliverer{}), amqp.Delivery{
			Acknowledger: ack, RoutingKey: domain.EventPaymentSucceeded, Body: body,
		})
		assert.True(t, ack.acked)
	})

	t.Run("malformed is dropped", func(t *testing.T) {
		ack := &ackResult{}
		process(context.Background(), NewNotificationHandler(&fakeDeliverer{}), amqp.Delivery{
			Acknowledger: ack, RoutingKey: domain.EventPaymentSucceeded, Body: []byte("{"),
		})
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("failure requeued once", func(t *testing.T) {
		failing := NewNotificationHandler(&fakeDeliverer{err: errors.New("smtp down")})

		ack := &ackResult{}
		process(context.Background(), failing, amqp.Delivery{
			Acknowledger: ack, RoutingKey: domain.EventPaymentSucceeded, Body: body,
		})
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)

		ack = &ackResult{}
		process(context.Background(), failing, amqp.Delivery{
			Acknowledger: ack, RoutingKey: domain.EventPaymentSucceeded, Body: body, Redelivered: true,
		})
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})
}
