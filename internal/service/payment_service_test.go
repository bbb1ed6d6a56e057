package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type paymentFixture struct {
	svc        *PaymentService
	packages   *memPackageRepo
	payments   *memPaymentRepo
	subs       *memSubscriptionRepo
	dispatcher *recordingDispatcher
}

func gold() *domain.ClassPackage {
	return &domain.ClassPackage{
		ID:             "pkg_gold",
		Name:           "Gold",
		Price:          99900,
		DurationMonths: 1,
		IsActive:       true,
	}
}

func student() *domain.User {
	return &domain.User{
		ID:        "u1",
		Email:     "asha@example.com",
		FirstName: "Asha",
		LastName:  "Rao",
		IsActive:  true,
		Roles:     []string{domain.RoleStudent},
		Profile:   domain.Profile{PhoneNumber: "+919800000000"},
	}
}

func newPaymentFixture(gateway PaymentGateway, pkgs ...*domain.ClassPackage) *paymentFixture {
	f := &paymentFixture{
		packages:   newMemPackageRepo(pkgs...),
		payments:   newMemPaymentRepo(),
		subs:       newMemSubscriptionRepo(),
		dispatcher: &recordingDispatcher{},
	}
	f.svc = NewPaymentService(f.packages, f.payments, f.subs, newMemUserRepo(student()),
		gateway, f.dispatcher, domain.FixedClock{At: testNow}, "INR", "http://api.local/v1/payments/verify")
	return f
}

func validCallback(orderID string) PaymentCallback {
	return PaymentCallback{OrderID: orderID, PaymentID: "pay_1", Signature: MockSignature(orderID, "pay_1")}
}

func TestGoldPackagePurchase(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)
	assert.Equal(t, int64(99900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "rzp_test_mock", order.KeyID)
	assert.Equal(t, "Asha Rao", order.Prefill.Name)
	assert.Equal(t, domain.PaymentStatusPending, f.payments.get(order.OrderID).Status)

	res, err := f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)
	assert.False(t, res.AlreadySettled)

	payment := f.payments.get(order.OrderID)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "pay_1", payment.GatewayPaymentID)

	sub, err := f.subs.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
	assert.Equal(t, "pkg_gold", sub.PackageID)
	assert.Equal(t, testNow, sub.StartDate)
	assert.Equal(t, testNow.Add(30*24*time.Hour), sub.EndDate)

	require.Len(t, f.dispatcher.receipts, 1)
	receipt := f.dispatcher.receipts[0]
	assert.Equal(t, "asha@example.com", receipt.Recipient.Email)
	assert.Equal(t, "Gold", receipt.PackageName)
	assert.Equal(t, order.OrderID, receipt.TransactionID)
}

func TestEndDateFollowsPackageDuration(t *testing.T) {
	for _, months := range []int{1, 3, 6, 12} {
		pkg := gold()
		pkg.DurationMonths = months
		f := newPaymentFixture(&MockGateway{}, pkg)

		order, err := f.svc.InitiateOrder(context.Background(), "u1", pkg.ID)
		require.NoError(t, err)
		res, err := f.svc.VerifyPayment(context.Background(), validCallback(order.OrderID))
		require.NoError(t, err)

		assert.Equal(t, testNow.AddDate(0, 0, 30*months), res.Subscription.EndDate, "duration %d", months)
	}
}

func TestReverifySettledPaymentIsNoop(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)

	res, err := f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)
	assert.True(t, res.AlreadySettled)
	require.NotNil(t, res.Subscription)

	count, _ := f.subs.CountByUserID(ctx, "u1")
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.subs.upserts)
	assert.Len(t, f.dispatcher.receipts, 1)
}

func TestConcurrentCallbacksSettleOnce(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*VerifyResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		if !results[i].AlreadySettled {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, f.dispatcher.receipts, 1)

	count, _ := f.subs.CountByUserID(ctx, "u1")
	assert.Equal(t, int64(1), count)
	sub, err := f.subs.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(30*24*time.Hour), sub.EndDate)
}

func TestSubscriptionWriteFailureIsRepairedByRetry(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)

	f.subs.upsertErr = errors.New("mongo: connection reset")
	_, err = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.Error(t, err)

	// Nothing is settled without a subscription
	assert.Equal(t, domain.PaymentStatusPending, f.payments.get(order.OrderID).Status)
	count, _ := f.subs.CountByUserID(ctx, "u1")
	assert.Zero(t, count)
	assert.Empty(t, f.dispatcher.receipts)

	// The gateway retries the same callback
	res, err := f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)
	assert.False(t, res.AlreadySettled)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, "pkg_gold", res.Subscription.PackageID)
	assert.Equal(t, domain.PaymentStatusSuccess, f.payments.get(order.OrderID).Status)
	count, _ = f.subs.CountByUserID(ctx, "u1")
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.dispatcher.receipts, 1)
}

func TestSettleFailureIsRepairedByRetry(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)

	f.payments.settleErr = errors.New("mongo: write concern timeout")
	_, err = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.Error(t, err)

	assert.Equal(t, domain.PaymentStatusPending, f.payments.get(order.OrderID).Status)
	assert.Empty(t, f.dispatcher.receipts)

	res, err := f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)
	assert.False(t, res.AlreadySettled)
	assert.Equal(t, domain.PaymentStatusSuccess, f.payments.get(order.OrderID).Status)

	// The retry rewrote the same single row
	assert.Equal(t, 2, f.subs.upserts)
	count, _ := f.subs.CountByUserID(ctx, "u1")
	assert.Equal(t, int64(1), count)
	sub, err := f.subs.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sub.IsActive)
	assert.Equal(t, testNow.Add(30*24*time.Hour), sub.EndDate)
	assert.Len(t, f.dispatcher.receipts, 1)

	// Once settled, further callbacks change nothing
	res, err = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)
	assert.True(t, res.AlreadySettled)
	assert.Equal(t, 2, f.subs.upserts)
}

func TestSignatureMismatchLeavesPaymentPending(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)

	cb := validCallback(order.OrderID)
	cb.Signature = MockSignature(order.OrderID, "pay_other")
	_, err = f.svc.VerifyPayment(ctx, cb)
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)

	_, err = f.svc.VerifyPayment(ctx, PaymentCallback{OrderID: order.OrderID})
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)

	assert.Equal(t, domain.PaymentStatusPending, f.payments.get(order.OrderID).Status)
	count, _ := f.subs.CountByUserID(ctx, "u1")
	assert.Zero(t, count)
	assert.Empty(t, f.dispatcher.receipts)
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())

	_, err := f.svc.VerifyPayment(context.Background(), validCallback("order_unknown"))
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestVerifyWithDeletedPackage(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)
	delete(f.packages.pkgs, "pkg_gold")

	_, err = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)
	assert.Equal(t, domain.PaymentStatusPending, f.payments.get(order.OrderID).Status)
}

func TestInitiateOrderErrors(t *testing.T) {
	inactive := gold()
	inactive.ID = "pkg_old"
	inactive.IsActive = false

	t.Run("unknown package", func(t *testing.T) {
		f := newPaymentFixture(&MockGateway{})
		_, err := f.svc.InitiateOrder(context.Background(), "u1", "pkg_missing")
		assert.ErrorIs(t, err, domain.ErrPackageNotFound)
	})

	t.Run("inactive package", func(t *testing.T) {
		f := newPaymentFixture(&MockGateway{}, inactive)
		_, err := f.svc.InitiateOrder(context.Background(), "u1", "pkg_old")
		assert.ErrorIs(t, err, domain.ErrPackageInactive)
	})

	t.Run("gateway down records nothing", func(t *testing.T) {
		f := newPaymentFixture(failingGateway{}, gold())
		_, err := f.svc.InitiateOrder(context.Background(), "u1", "pkg_gold")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

		history, err := f.svc.History(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestRecordFailureThenLateSuccess(t *testing.T) {
	f := newPaymentFixture(&MockGateway{}, gold())
	ctx := context.Background()

	order, err := f.svc.InitiateOrder(ctx, "u1", "pkg_gold")
	require.NoError(t, err)

	require.NoError(t, f.svc.RecordFailure(ctx, GatewayFailure{
		OrderID: order.OrderID, PaymentID: "pay_x", Code: "BAD_REQUEST_ERROR", Description: "Payment failed",
	}))
	failed := f.payments.get(order.OrderID)
	assert.Equal(t, domain.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "BAD_REQUEST_ERROR: Payment failed", failed.FailureReason)
	assert.Equal(t, testNow, failed.UpdatedAt)

	// Unknown orders and repeated failures are ignored
	assert.NoError(t, f.svc.RecordFailure(ctx, GatewayFailure{OrderID: "order_missing"}))
	assert.NoError(t, f.svc.RecordFailure(ctx, GatewayFailure{OrderID: order.OrderID}))

	_, err = f.svc.VerifyPayment(ctx, validCallback(order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, f.payments.get(order.OrderID).Status)
}

func TestMockGatewaySignature(t *testing.T) {
	g := &MockGateway{}
	assert.True(t, g.VerifySignature("order_1", "pay_1", MockSignature("order_1", "pay_1")))
	assert.False(t, g.VerifySignature("order_1", "pay_1", "deadbeef"))
	assert.False(t, g.VerifySignature("", "pay_1", MockSignature("", "pay_1")))
}
