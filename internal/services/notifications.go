package services

import (
	"context"
	"time"

	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"
	"ecommerce_back_end/internal/utils"

	"github.com/rs/zerolog/log"
)

const emailTimeout = 30 * time.Second

// EmailNotifier envoie le mail de confirmation en arrière-plan : un SMTP
// lent ou en panne ne bloque jamais le webhook.
type EmailNotifier struct {
	users  repository.UserStore
	mailer *utils.Mailer
}

func NewEmailNotifier(users repository.UserStore, mailer *utils.Mailer) *EmailNotifier {
	return &EmailNotifier{users: users, mailer: mailer}
}

func (n *EmailNotifier) OrderConfirmed(ctx context.Context, order *models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emailTimeout)
	go func() {
		defer cancel()

		user, err := n.users.GetUserByID(ctx, order.UserID)
		if err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("⚠️ Client introuvable, e-mail non envoyé")
			return
		}
		body, err := utils.OrderConfirmationHTML(*order)
		if err != nil {
			log.Error().Err(err).Str("order_id", order.ID.String()).Msg("❌ Rendu de l'e-mail échoué")
			return
		}
		if err := n.mailer.Send(ctx, user.Email, "Confirmation de votre commande", body); err != nil {
			log.Error().Err(err).Str("order_id", order.ID.String()).Msg("❌ Envoi de l'e-mail échoué")
			return
		}
		log.Info().Str("order_id", order.ID.String()).Msg("📧 E-mail de confirmation envoyé")
	}()
}
