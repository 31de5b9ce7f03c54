package routes

import (
	"net/http"

	"ecommerce_back_end/internal/handlers/payment"
	"ecommerce_back_end/internal/handlers/product"
	"ecommerce_back_end/internal/handlers/user"
	"ecommerce_back_end/internal/middleware"
	"ecommerce_back_end/internal/services"

	"github.com/gin-gonic/gin"
)

// Dependencies regroupe les services exposés par l'API.
type Dependencies struct {
	Catalog   *services.Catalog
	Carts     *services.Carts
	Orders    *services.OrderFlow
	Payments  *services.Payments
	Users     *services.Users
	Limiter   middleware.Limiter
	JWTSecret string
}

func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewMemoryLimiter()
	}

	products := product.NewHandler(deps.Catalog)
	auth := user.NewAuthHandler(deps.Users)
	carts := user.NewCartHandler(deps.Carts)
	orders := user.NewOrderHandler(deps.Carts, deps.Orders)
	payments := payment.NewHandler(deps.Payments)

	authRequired := middleware.AuthRequired(deps.JWTSecret)
	audit := middleware.AuditCriticalActions

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// ================= AUTH =================
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", middleware.LoginRateLimit(deps.Limiter), auth.Login)
		authGroup.GET("/me", authRequired, auth.Me)
	}

	// ================= CATALOGUE =================
	productGroup := api.Group("/products")
	{
		productGroup.GET("", products.ListProducts)
		productGroup.GET("/categories", products.ListCategories)
		productGroup.GET("/:id", products.GetProduct)

		admin := productGroup.Group("", authRequired, middleware.RequireAdmin)
		admin.POST("", audit(middleware.ActionProductCreate), products.CreateProduct)
		admin.PUT("/:id", audit(middleware.ActionProductUpdate), products.UpdateProduct)
		admin.DELETE("/:id", audit(middleware.ActionProductDelete), products.DeleteProduct)
		admin.POST("/:id/image", audit(middleware.ActionProductImage), products.UploadImage)
		admin.POST("/:id/restock", audit(middleware.ActionProductRestock), products.Restock)
		admin.POST("/categories", audit(middleware.ActionCategoryCreate), products.CreateCategory)
		admin.DELETE("/categories/:id", audit(middleware.ActionCategoryDelete), products.DeleteCategory)
	}

	// ================= PANIER =================
	cartGroup := api.Group("/cart", authRequired)
	{
		cartGroup.GET("", carts.GetCart)
		cartGroup.POST("", middleware.CartRateLimit(deps.Limiter), carts.AddToCart)
		cartGroup.DELETE("", carts.RemoveFromCart)
		cartGroup.DELETE("/clear", carts.ClearCart)
	}

	// ================= COMMANDES =================
	orderGroup := api.Group("/orders", authRequired)
	{
		orderGroup.POST("/checkout", middleware.CheckoutRateLimit(deps.Limiter), orders.Checkout)
		orderGroup.GET("", orders.ListOrders)
		orderGroup.GET("/:id", orders.GetOrder)
		orderGroup.POST("/:id/cancel", orders.CancelOrder)
		orderGroup.POST("/:id/ship", middleware.RequireAdmin, audit(middleware.ActionOrderShip), orders.ShipOrder)
	}

	// ================= PAIEMENTS =================
	paymentGroup := api.Group("/payments/stripe")
	{
		paymentGroup.POST("/create-session", authRequired, payments.CreateCheckoutSession)
		paymentGroup.POST("/webhook", payments.StripeWebhook)
	}
}
