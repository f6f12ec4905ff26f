package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/autoshop/backend/docs"
	"github.com/autoshop/backend/internal/interfaces/http/middleware"
)

// Swagger document instances
const (
	GatewayDocs = docs.Gateway
	BillingDocs = docs.Billing
)

// MountDocs serves the swagger UI and doc.json of instance under /swagger.
// The route answers 404 when cfg disables it.
func MountDocs(engine *gin.Engine, instance string, cfg middleware.SwaggerConfig) {
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg),
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.InstanceName(instance)),
	)
}
