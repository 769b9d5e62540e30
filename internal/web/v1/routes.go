package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// uploadBodyLimit leaves room for the form fields next to the largest image.
const uploadBodyLimit = domain.MaxImageBytes + 1<<20

// Handlers groups every API handler mounted by RegisterRoutes.
type Handlers struct {
	Users   *UserHandler
	Growth  *GrowthHandler
	Quality *QualityHandler
	Market  *MarketHandler
	Leaf    *LeafHandler
	History *HistoryHandler
}

// RegisterRoutes mounts the authenticated API on api. The inference handlers
// run in front of every POST that reaches an ML service (rate limiting,
// idempotency).
func RegisterRoutes(api *gin.RouterGroup, h Handlers, inference ...gin.HandlerFunc) {
	with := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		chain := make([]gin.HandlerFunc, 0, len(inference)+len(handlers))
		chain = append(chain, inference...)
		return append(chain, handlers...)
	}
	upload := limitBody(uploadBodyLimit)

	users := api.Group("/users")
	{
		users.POST("", h.Users.CreateUser)
		users.GET("/me", h.Users.GetMe)
		users.PUT("/profile", h.Users.UpdateProfile)
		users.POST("/upload-profile-photo", upload, h.Users.UploadProfilePhoto)
	}

	growth := api.Group("/growth")
	{
		growth.POST("/stage", with(upload, h.Growth.Stage)...)
		growth.POST("/harvest", with(h.Growth.Harvest)...)
		growth.GET("/history", h.History.List(domain.FeatureGrowthStage, domain.FeatureHarvest))
	}

	quality := api.Group("/quality")
	{
		quality.POST("/farmer", with(upload, h.Quality.Farmer)...)
		quality.GET("/farmer/history", h.History.List(domain.FeatureFarmerQuality))
		quality.POST("/customer", with(upload, h.Quality.Customer)...)
		quality.GET("/customer/history", h.History.List(domain.FeatureCustomerQuality))
	}

	market := api.Group("/market")
	{
		market.POST("/predict", with(h.Market.Predict)...)
		market.GET("/history", h.History.List(domain.FeatureMarketPrice))
	}

	leaf := api.Group("/leaf")
	{
		leaf.POST("/predict", with(upload, h.Leaf.Predict)...)
		leaf.POST("/recommend", with(h.Leaf.Recommend)...)
		leaf.GET("/health", h.Leaf.Health)
		leaf.GET("/history", h.History.List(domain.FeatureLeafDisease))
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// Banner handles GET /
func Banner(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Papaya Pulse API",
			"version": version,
			"status":  "running",
		})
	}
}

// APIHealth handles GET /api/health
func APIHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
