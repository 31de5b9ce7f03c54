package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	ActionProductCreate  = "product.create"
	ActionProductUpdate  = "product.update"
	ActionProductDelete  = "product.delete"
	ActionProductRestock = "product.restock"
	ActionProductImage   = "product.image"
	ActionCategoryCreate = "category.create"
	ActionCategoryDelete = "category.delete"
	ActionOrderShip      = "order.ship"
)

// AuditCriticalActions journalise les actions d'administration (qui, quoi,
// sur quelle ressource, résultat) une fois la requête traitée.
func AuditCriticalActions(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("audit_action", action).
			Str("resource_id", c.Param("id")).
			Str("user_id", c.GetString(ctxUserID)).
			Str("email", c.GetString(ctxEmail)).
			Str("ip", c.ClientIP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Bool("success", status < 400).
			Msg("📝 Audit")
	}
}
