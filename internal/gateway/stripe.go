package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

const StripeName = "stripe"

type StripeGateway struct {
	sessions      *session.Client
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) Name() string {
	return StripeName
}

// CreateSession crée une Checkout Session (mode paiement) avec une seule
// ligne « Commande <id> » au montant total de la commande.
func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	orderID := req.OrderID.String()
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(orderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Commande " + orderID),
					},
					UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{"order_id": orderID},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	log.Info().Str("order_id", orderID).Str("external_id", s.ID).Msg("💳 Session Stripe créée")
	return &Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, &SignatureVerificationError{Err: err}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	parsed := &Event{ID: event.ID, Type: string(event.Type), Kind: EventIgnored}

	var kind EventKind
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		kind = EventSucceeded
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		kind = EventSucceeded
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
		kind = EventFailed
	default:
		return parsed, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, ErrMalformedPayload
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil || cs.ID == "" {
		return nil, ErrMalformedPayload
	}

	// Paiement différé (virement...) : la confirmation arrivera via
	// async_payment_succeeded.
	if event.Type == stripe.EventTypeCheckoutSessionCompleted && cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return parsed, nil
	}

	parsed.Kind = kind
	parsed.ExternalID = cs.ID
	parsed.OrderID = cs.Metadata["order_id"]
	return parsed, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrTooOld)
}
