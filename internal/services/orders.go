package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce_back_end/internal/eventbus"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier est prévenu quand une commande est payée.
type Notifier interface {
	OrderConfirmed(ctx context.Context, order *models.Order)
}

type NoopNotifier struct{}

func (NoopNotifier) OrderConfirmed(context.Context, *models.Order) {}

type OrderFlowConfig struct {
	// ReleaseStockOnPaymentFailure annule la commande et restitue le stock
	// quand la passerelle signale un échec définitif.
	ReleaseStockOnPaymentFailure bool
}

// OrderFlow porte le cycle de vie des commandes :
// PENDING -> CONFIRMED -> SHIPPED, ou PENDING -> CANCELLED.
// Le stock est réservé à la création et n'est plus touché à la confirmation.
type OrderFlow struct {
	products  repository.ProductStore
	orders    repository.OrderStore
	inventory *Inventory
	publisher eventbus.Publisher
	notifier  Notifier
	cfg       OrderFlowConfig
	now       func() time.Time
}

func NewOrderFlow(
	products repository.ProductStore,
	orders repository.OrderStore,
	inventory *Inventory,
	publisher eventbus.Publisher,
	notifier Notifier,
	cfg OrderFlowConfig,
) *OrderFlow {
	if publisher == nil {
		publisher = eventbus.NoopPublisher{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &OrderFlow{
		products:  products,
		orders:    orders,
		inventory: inventory,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// mergeItems additionne les lignes en double en gardant l'ordre d'apparition.
func mergeItems(items []models.CartItem) ([]models.CartItem, error) {
	merged := make([]models.CartItem, 0, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, invalid("quantité invalide pour le produit %s", item.ProductID)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// CreateOrder transforme des lignes de panier en commande PENDING. Le stock
// de toutes les lignes est réservé comme une seule unité : soit tout est
// réservé et la commande existe, soit rien n'a changé.
func (f *OrderFlow) CreateOrder(ctx context.Context, userID uuid.UUID, items []models.CartItem) (*models.Order, error) {
	if len(items) == 0 {
		return nil, invalid("le panier est vide")
	}
	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	lines := make([]ReservationLine, 0, len(merged))
	for _, item := range merged {
		p, err := f.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("produit %s: %w", item.ProductID, err)
		}
		lines = append(lines, ReservationLine{Product: p, Quantity: item.Quantity})
	}

	if err := f.inventory.ReserveItems(ctx, lines); err != nil {
		return nil, err
	}

	now := f.now()
	order := &models.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]models.OrderItem, 0, len(lines)),
	}
	for i, line := range lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Position:    i,
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.Product.Price,
		})
	}
	order.TotalPrice = models.ComputeTotal(order.Items)

	if err := f.orders.CreateOrder(ctx, order); err != nil {
		f.inventory.release(ctx, lines)
		return nil, fmt.Errorf("enregistrement commande: %w", err)
	}

	log.Info().Str("order_id", order.ID.String()).Str("user_id", userID.String()).
		Str("total", order.TotalPrice.StringFixed(2)).Int("items", len(order.Items)).Msg("🛒 Commande créée")
	f.publish(ctx, eventbus.OrderCreated, order)
	return order, nil
}

// ConfirmOrder passe PENDING -> CONFIRMED. Rejouer la confirmation sur une
// commande déjà CONFIRMED ou SHIPPED ne fait rien.
func (f *OrderFlow) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	applied, current, err := f.transition(ctx, orderID, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !applied {
		// CONFIRMED ou un statut atteignable depuis CONFIRMED : déjà traité.
		if current == models.StatusConfirmed || models.StatusConfirmed.CanTransitionTo(current) {
			log.Info().Str("order_id", orderID.String()).Str("status", current.String()).Msg("🔁 Commande déjà confirmée")
			return f.orders.GetOrder(ctx, orderID)
		}
		return nil, &InvalidTransitionError{OrderID: orderID, From: current, To: models.StatusConfirmed}
	}

	order, err := f.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID.String()).Msg("✅ Commande confirmée")
	f.publish(ctx, eventbus.OrderConfirmed, order)
	f.notifier.OrderConfirmed(ctx, order)
	return order, nil
}

// CancelOrder n'est possible que depuis PENDING. Seul l'appel qui réussit la
// transition restitue le stock : deux annulations concurrentes ne libèrent
// jamais deux fois.
func (f *OrderFlow) CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	applied, current, err := f.transition(ctx, orderID, models.StatusPending, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, &InvalidTransitionError{OrderID: orderID, From: current, To: models.StatusCancelled}
	}
	return f.afterCancel(ctx, orderID)
}

// CancelUserOrder annule une commande appartenant à l'utilisateur.
func (f *OrderFlow) CancelUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if _, err := f.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	return f.CancelOrder(ctx, orderID)
}

func (f *OrderFlow) afterCancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := f.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := f.inventory.ReleaseOrderItems(context.WithoutCancel(ctx), order.Items); err != nil {
		log.Error().Err(err).Str("order_id", orderID.String()).Msg("❌ Stock partiellement restitué")
	}
	log.Info().Str("order_id", orderID.String()).Msg("🚫 Commande annulée, stock restitué")
	f.publish(ctx, eventbus.OrderCancelled, order)
	return order, nil
}

// FailPayment réagit à un échec définitif de paiement. Selon la
// configuration, la commande PENDING est annulée et son stock restitué ;
// sinon elle reste PENDING jusqu'à une nouvelle tentative ou expiration.
func (f *OrderFlow) FailPayment(ctx context.Context, orderID uuid.UUID) error {
	if !f.cfg.ReleaseStockOnPaymentFailure {
		log.Info().Str("order_id", orderID.String()).Msg("⚠️ Paiement échoué, commande laissée en attente")
		return nil
	}
	applied, current, err := f.transition(ctx, orderID, models.StatusPending, models.StatusCancelled)
	if err != nil {
		return err
	}
	if !applied {
		log.Info().Str("order_id", orderID.String()).Str("status", current.String()).Msg("ℹ️ Échec de paiement ignoré, commande déjà traitée")
		return nil
	}
	_, err = f.afterCancel(ctx, orderID)
	return err
}

// ShipOrder : CONFIRMED -> SHIPPED.
func (f *OrderFlow) ShipOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	applied, current, err := f.transition(ctx, orderID, models.StatusConfirmed, models.StatusShipped)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, &InvalidTransitionError{OrderID: orderID, From: current, To: models.StatusShipped}
	}
	order, err := f.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("order_id", orderID.String()).Msg("🚚 Commande expédiée")
	f.publish(ctx, eventbus.OrderShipped, order)
	return order, nil
}

// transition applique from -> to de façon conditionnelle. Seules les
// transitions de models.OrderStatus.CanTransitionTo atteignent le dépôt.
func (f *OrderFlow) transition(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus) (bool, models.OrderStatus, error) {
	if !from.CanTransitionTo(to) {
		return false, from, &InvalidTransitionError{OrderID: orderID, From: from, To: to}
	}
	return f.orders.TransitionOrderStatus(ctx, orderID, from, to)
}

// GetOrder ne renvoie que les commandes de l'utilisateur ; une commande
// d'un autre client est traitée comme inexistante.
func (f *OrderFlow) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := f.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return order, nil
}

func (f *OrderFlow) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return f.orders.ListOrdersByUser(ctx, userID)
}

func (f *OrderFlow) publish(ctx context.Context, eventType string, order *models.Order) {
	event := models.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		Items:      order.Items,
		OccurredAt: f.now(),
	}
	if err := f.publisher.Publish(ctx, eventType, event); err != nil {
		log.Warn().Err(err).Str("order_id", order.ID.String()).Str("event", eventType).Msg("⚠️ Publication de l'événement échouée")
	}
}

// IsInvalidTransition facilite les tests et le mapping HTTP.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}
