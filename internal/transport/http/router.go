package httptransport

import (
	"log/slog"

	"github.com/LegalDragon/funtime-identity/internal/transport/http/handler"
	"github.com/LegalDragon/funtime-identity/internal/transport/http/middleware"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	linkHandler *handler.LinkHandler,
	keyHandler *handler.ApiKeyHandler,
	partnerHandler *handler.PartnerHandler,
	tokens *usecase.TokenService,
	keys *usecase.ApiKeyUsecase,
) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/otp/send", authHandler.OtpSend)
		auth.POST("/otp/verify", authHandler.OtpVerify)
		auth.GET("/validate", authHandler.ValidateToken)

		link := auth.Group("/link", middleware.Auth(tokens))
		{
			link.POST("/phone", linkHandler.LinkPhone)
			link.POST("/email", linkHandler.LinkEmail)
			link.POST("/external", linkHandler.LinkExternal)
			link.DELETE("/external/:provider", linkHandler.UnlinkExternal)
		}
	}

	// Trusted server-to-server calls carry the shared secret in the body;
	// they are gated inside the usecase, not by middleware.
	s2s := r.Group("/s2s")
	{
		s2s.POST("/external-login", authHandler.ExternalLogin)
		s2s.POST("/force-auth", authHandler.ForceAuth)
	}

	partner := r.Group("/partner", middleware.APIKey(keys, middleware.APIKeyOptions{
		RequiredScope: "partner:read",
	}))
	{
		partner.GET("/me", partnerHandler.Me)
	}

	admin := r.Group("/admin", middleware.Auth(tokens))
	{
		admin.POST("/keys", keyHandler.Create)
		admin.GET("/keys", keyHandler.List)
		admin.PUT("/keys/:id", keyHandler.Update)
		admin.POST("/keys/:id/regenerate", keyHandler.Regenerate)
		admin.DELETE("/keys/:id", keyHandler.Delete)
	}

	return r
}
