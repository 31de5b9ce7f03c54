package user

import (
	"errors"
	"io"
	"net/http"

	"ecommerce_back_end/internal/handlers"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/services"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	carts *services.Carts
	flow  *services.OrderFlow
}

func NewOrderHandler(carts *services.Carts, flow *services.OrderFlow) *OrderHandler {
	return &OrderHandler{carts: carts, flow: flow}
}

// Checkout : POST /api/orders/checkout. Sans corps (ou sans "items"), la
// commande est créée à partir du panier.
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var in struct {
		Items []models.CartItem `json:"items" binding:"omitempty,dive"`
	}
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		handlers.BadRequest(c, err)
		return
	}

	order, err := h.carts.Checkout(c.Request.Context(), userID, in.Items)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orders, err := h.flow.ListOrders(c.Request.Context(), userID)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := handlers.ParamUUID(c, "id")
	if !ok {
		return
	}
	order, err := h.flow.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := handlers.ParamUUID(c, "id")
	if !ok {
		return
	}
	order, err := h.flow.CancelUserOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ShipOrder est réservé aux administrateurs.
func (h *OrderHandler) ShipOrder(c *gin.Context) {
	orderID, ok := handlers.ParamUUID(c, "id")
	if !ok {
		return
	}
	order, err := h.flow.ShipOrder(c.Request.Context(), orderID)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
