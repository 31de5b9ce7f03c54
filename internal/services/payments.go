package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce_back_end/internal/cache"
	"ecommerce_back_end/internal/gateway"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type PaymentsConfig struct {
	Currency          string
	DefaultSuccessURL string
	DefaultCancelURL  string
}

type CheckoutSession struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	SessionID     string    `json:"session_id"`
	CheckoutURL   string    `json:"checkout_url"`
}

// Payments relie la passerelle aux transactions et au cycle de vie des
// commandes. Les webhooks peuvent arriver plusieurs fois : chaque étape est
// une transition conditionnelle rejouable.
type Payments struct {
	gateway  gateway.Gateway
	orders   repository.OrderStore
	payments repository.PaymentStore
	users    repository.UserStore
	flow     *OrderFlow
	dedup    cache.EventDeduper
	cfg      PaymentsConfig
}

func NewPayments(
	gw gateway.Gateway,
	orders repository.OrderStore,
	payments repository.PaymentStore,
	users repository.UserStore,
	flow *OrderFlow,
	dedup cache.EventDeduper,
	cfg PaymentsConfig,
) *Payments {
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	return &Payments{gateway: gw, orders: orders, payments: payments, users: users, flow: flow, dedup: dedup, cfg: cfg}
}

// CreateSession ouvre une session de paiement pour une commande PENDING du
// client. Le montant vient toujours de la commande, jamais du client.
func (p *Payments) CreateSession(ctx context.Context, userID, orderID uuid.UUID, successURL, cancelURL string) (*CheckoutSession, error) {
	order, err := p.flow.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, &InvalidTransitionError{OrderID: orderID, From: order.Status, To: models.StatusConfirmed}
	}
	if successURL == "" {
		successURL = p.cfg.DefaultSuccessURL
	}
	if cancelURL == "" {
		cancelURL = p.cfg.DefaultCancelURL
	}
	if successURL == "" || cancelURL == "" {
		return nil, invalid("success_url et cancel_url sont requis")
	}

	var email string
	if u, err := p.users.GetUserByID(ctx, userID); err == nil {
		email = u.Email
	}

	now := time.Now().UTC()
	tx := &models.PaymentTransaction{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Gateway:   p.gateway.Name(),
		Amount:    order.TotalPrice,
		Currency:  p.cfg.Currency,
		Status:    models.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.payments.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("création transaction: %w", err)
	}

	session, err := p.gateway.CreateSession(ctx, gateway.SessionRequest{
		OrderID:       order.ID,
		Amount:        order.TotalPrice,
		Currency:      p.cfg.Currency,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		CustomerEmail: email,
	})
	if err != nil {
		p.abandon(ctx, tx)
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("❌ Création de session de paiement échouée")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	if err := p.payments.AttachExternalID(ctx, tx.ID, session.ID); err != nil {
		// Sans identifiant externe aucun webhook ne retrouvera la transaction.
		p.abandon(ctx, tx)
		return nil, fmt.Errorf("rattachement session %s: %w", session.ID, err)
	}

	return &CheckoutSession{TransactionID: tx.ID, SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// abandon passe en failed une transaction qu'aucun webhook ne pourra régler,
// pour qu'elle ne bloque pas l'annulation de la commande.
func (p *Payments) abandon(ctx context.Context, tx *models.PaymentTransaction) {
	if _, err := p.settle(context.WithoutCancel(ctx), tx, models.PaymentFailed); err != nil {
		log.Error().Err(err).Str("transaction_id", tx.ID.String()).Msg("❌ Impossible de marquer la transaction en échec")
	}
}

// settle fait passer la transaction de pending au statut final demandé et
// renvoie le statut courant, que la transition ait eu lieu ou non.
func (p *Payments) settle(ctx context.Context, tx *models.PaymentTransaction, to models.PaymentStatus) (models.PaymentStatus, error) {
	if !models.PaymentPending.CanTransitionTo(to) {
		return "", fmt.Errorf("statut de transaction %q non final", to)
	}
	_, current, err := p.payments.TransitionPaymentStatus(ctx, tx.ID, models.PaymentPending, to)
	return current, err
}

// HandleWebhook vérifie puis applique un événement de la passerelle.
// Les erreurs de signature ou de contenu sont renvoyées telles quelles
// (aucune donnée modifiée). Une erreur interne est renvoyée pour que la
// passerelle relivre l'événement.
func (p *Payments) HandleWebhook(ctx context.Context, payload []byte, signature string) (*gateway.Event, error) {
	event, err := p.gateway.ParseWebhook(payload, signature)
	if err != nil {
		log.Warn().Err(err).Msg("❌ Webhook rejeté")
		return nil, err
	}

	logger := log.With().Str("event_id", event.ID).Str("event_type", event.Type).Str("external_id", event.ExternalID).Logger()
	logger.Info().Msg("📥 Événement de paiement reçu")

	if event.Kind == gateway.EventIgnored {
		logger.Info().Msg("ℹ️ Événement ignoré")
		return event, nil
	}

	if p.dedup != nil && event.ID != "" {
		seen, err := p.dedup.AlreadyProcessed(ctx, event.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("⚠️ Déduplication indisponible, traitement complet")
		} else if seen {
			logger.Info().Msg("🔁 Événement déjà traité")
			return event, nil
		}
	}

	tx, err := p.payments.GetTransactionByExternalID(ctx, event.ExternalID)
	if errors.Is(err, repository.ErrNotFound) {
		unknown := &UnknownTransactionError{ExternalID: event.ExternalID}
		logger.Warn().Err(unknown).Str("order_id", event.OrderID).Msg("⚠️ Transaction inconnue, événement ignoré")
		return event, nil
	}
	if err != nil {
		return nil, err
	}

	switch event.Kind {
	case gateway.EventSucceeded:
		err = p.applySuccess(ctx, tx)
	case gateway.EventFailed:
		err = p.applyFailure(ctx, tx)
	}
	if err != nil {
		logger.Error().Err(err).Str("order_id", tx.OrderID.String()).Msg("❌ Traitement du webhook échoué")
		return nil, err
	}

	if p.dedup != nil && event.ID != "" {
		if err := p.dedup.MarkProcessed(ctx, event.ID); err != nil {
			logger.Warn().Err(err).Msg("⚠️ Impossible de mémoriser l'événement")
		}
	}
	return event, nil
}

// applySuccess : transaction -> success puis confirmation de la commande.
// Si la transaction est déjà success, la confirmation est rejouée : un arrêt
// entre les deux étapes se répare à la relivraison.
func (p *Payments) applySuccess(ctx context.Context, tx *models.PaymentTransaction) error {
	current, err := p.settle(ctx, tx, models.PaymentSuccess)
	if err != nil {
		return err
	}
	if current != models.PaymentSuccess {
		log.Warn().Str("transaction_id", tx.ID.String()).Str("status", string(current)).
			Msg("⚠️ Paiement réussi reçu pour une transaction déjà en échec")
		return nil
	}

	_, err = p.flow.ConfirmOrder(ctx, tx.OrderID)
	if IsInvalidTransition(err) {
		// Commande annulée entre-temps : le paiement doit être remboursé.
		log.Error().Err(err).Str("order_id", tx.OrderID.String()).Str("transaction_id", tx.ID.String()).
			Msg("💸 Paiement reçu pour une commande annulée, remboursement manuel requis")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("order_id", tx.OrderID.String()).Str("transaction_id", tx.ID.String()).Msg("💳 Paiement confirmé")
	return nil
}

func (p *Payments) applyFailure(ctx context.Context, tx *models.PaymentTransaction) error {
	current, err := p.settle(ctx, tx, models.PaymentFailed)
	if err != nil {
		return err
	}
	if current != models.PaymentFailed {
		log.Warn().Str("transaction_id", tx.ID.String()).Str("status", string(current)).
			Msg("⚠️ Échec reçu pour une transaction déjà réussie, ignoré")
		return nil
	}
	log.Info().Str("order_id", tx.OrderID.String()).Str("transaction_id", tx.ID.String()).Msg("❌ Paiement échoué")

	// Une autre tentative de paiement de la même commande est encore en
	// cours ou a abouti : la commande ne doit pas être annulée.
	others, err := p.payments.ListTransactionsByOrder(ctx, tx.OrderID)
	if err != nil {
		return err
	}
	for _, other := range others {
		if other.ID != tx.ID && other.Status != models.PaymentFailed {
			log.Info().Str("order_id", tx.OrderID.String()).Str("transaction_id", other.ID.String()).
				Msg("ℹ️ Autre tentative de paiement active, commande conservée")
			return nil
		}
	}
	return p.flow.FailPayment(ctx, tx.OrderID)
}
