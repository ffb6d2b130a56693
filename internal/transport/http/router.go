package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/handlers"
	"github.com/skillbay/marketplace/internal/handlers/auth"
	"github.com/skillbay/marketplace/internal/service/token"
)

type Deps struct {
	DB                *gorm.DB
	AuthHandler       *auth.AuthHandler
	ProductHandler    *handlers.ProductHandler
	CheckoutHandler   *handlers.CheckoutHandler
	NotifyHandler     *handlers.NotifyHandler
	OrderHandler      *handlers.OrderHandler
	FreelancerHandler *handlers.FreelancerHandler
	SearchHandler     *handlers.SearchHandler
	ServiceHandler    *token.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.GET("/search", d.SearchHandler.Search)
	v1.GET("/freelancers/:id", d.FreelancerHandler.GetFreelancer)

	// Server-to-server gateway callback; authenticated by its signature,
	// not by a session.
	v1.POST("/payfast/notify", d.NotifyHandler.HandleNotify)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	seller := v1.Group("/seller", d.ServiceHandler.AutoRefreshMiddlewareFreelancer)
	seller.POST("/products", d.ProductHandler.CreateProduct)
	seller.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	seller.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	priv := v1.Group("", d.ServiceHandler.AutoRefreshMiddleware)
	priv.POST("/checkout", d.CheckoutHandler.Checkout)
	priv.GET("/orders", d.OrderHandler.ListOrders)
	priv.GET("/orders/check-purchase/:productId", d.OrderHandler.CheckPurchase)
	priv.GET("/orders/:id", d.OrderHandler.GetOrder)
}
