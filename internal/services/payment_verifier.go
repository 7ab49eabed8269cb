package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/DennisTemoye/propty-os1-sub003/internal/ledger"
	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// PaymentMethodCard is the only method checked against a processor.
const PaymentMethodCard = "card"

// PaymentVerifier confirms that an external payment reference settled the
// expected amount.
type PaymentVerifier interface {
	Verify(ctx context.Context, paymentMethod string, referenceID *string, amount ledger.Money) error
}

// NoopPaymentVerifier accepts every payment.
type NoopPaymentVerifier struct{}

func (NoopPaymentVerifier) Verify(context.Context, string, *string, ledger.Money) error { return nil }

// PaymentIntentFetcher loads a Stripe PaymentIntent by id.
type PaymentIntentFetcher func(ctx context.Context, id string) (*stripe.PaymentIntent, error)

// StripePaymentVerifier checks card payments against a succeeded
// PaymentIntent of the same amount and currency. Other methods pass.
type StripePaymentVerifier struct {
	currency string
	fetch    PaymentIntentFetcher
}

func NewStripePaymentVerifier(secretKey, currency string) *StripePaymentVerifier {
	stripe.Key = secretKey
	return &StripePaymentVerifier{
		currency: strings.ToLower(currency),
		fetch: func(_ context.Context, id string) (*stripe.PaymentIntent, error) {
			return paymentintent.Get(id, nil) // uses global API key
		},
	}
}

// NewStripePaymentVerifierWithFetcher is used where the Stripe API must not be called.
func NewStripePaymentVerifierWithFetcher(currency string, fetch PaymentIntentFetcher) *StripePaymentVerifier {
	return &StripePaymentVerifier{currency: strings.ToLower(currency), fetch: fetch}
}

func (v *StripePaymentVerifier) Verify(ctx context.Context, paymentMethod string, referenceID *string, amount ledger.Money) error {
	if !strings.EqualFold(strings.TrimSpace(paymentMethod), PaymentMethodCard) {
		return nil
	}
	ref := strings.TrimSpace(utils.Val(referenceID))
	if ref == "" {
		return utils.Violation(utils.ErrPaymentNotVerified, "", "reason", "card payments need a PaymentIntent reference")
	}

	pi, err := v.fetch(ctx, ref)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Failed to retrieve PaymentIntent %s", ref)
		return fmt.Errorf("%w: retrieving payment intent %s: %v", utils.ErrExternalServiceFailure, ref, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return utils.Violation(utils.ErrPaymentNotVerified, "",
			"reference_id", ref,
			"stripe_status", string(pi.Status),
		)
	}
	if pi.Amount != amount.Int64() || (v.currency != "" && !strings.EqualFold(string(pi.Currency), v.currency)) {
		return utils.Violation(utils.ErrPaymentNotVerified, "",
			"reference_id", ref,
			"expected_amount", amount.String(),
			"stripe_amount", fmt.Sprintf("%d %s", pi.Amount, pi.Currency),
		)
	}
	return nil
}
