package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"authgate/api/internal/config"
	"authgate/api/internal/mfa"
	"authgate/api/internal/middleware"
	"authgate/api/internal/models"
	"authgate/api/internal/repository"
	"authgate/api/internal/security"
	"authgate/api/internal/service"
)

// HandlerSet wires every request handler to the services built at startup.
// Construction is explicit; there is no registry to resolve from.
type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	signer  *security.TokenSigner
	auth    *service.AuthService
	social  *service.SocialService
	users   *service.UserService
	tenants *service.TenantService
	gate    *mfa.Service
	db      *pgxpool.Pool
	cache   *redis.Client
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	signer *security.TokenSigner,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	sessionRepo := repository.NewSessionRepository(db, cfg.Security.RefreshTTL, cfg.Security.GraceWindow)

	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)
	gate := mfa.NewService(userRepo, cfg.MFA.Issuer)

	auth := service.NewAuthService(userRepo, sessionRepo, signer, hasher, gate, cfg, log)
	social := service.NewSocialService(auth, userRepo, cfg.OAuth, log)
	users := service.NewUserService(userRepo, hasher, log)
	tenants := service.NewTenantService(tenantRepo, log)

	return HandlerSet{
		log:     log,
		cfg:     cfg,
		signer:  signer,
		auth:    auth,
		social:  social,
		users:   users,
		tenants: tenants,
		gate:    gate,
		db:      db,
		cache:   cache,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireAuth := middleware.Auth(h.signer)
	requireRefresh := middleware.ValidateRefreshToken(h.signer, h.auth)
	limited := h.loginRateLimit()

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", limited, h.Login)
		auth.POST("/verifyLoginMfa", limited, h.VerifyLoginMfa)
		auth.POST("/refresh", requireRefresh, h.Refresh)
		auth.POST("/logout", requireAuth, requireRefresh, h.Logout)
		auth.GET("/self", requireAuth, h.Self)
		auth.POST("/changePassword", requireAuth, h.ChangePassword)
		auth.POST("/sendUserPasswordResetEmail", limited, h.SendPasswordReset)
		auth.POST("/userPasswordReset", limited, h.ResetPassword)
		auth.POST("/sendVerifyEmail", requireAuth, h.SendVerifyEmail)
		auth.POST("/verifyEmail", requireAuth, h.VerifyEmail)
		auth.GET("/setupMfa", requireAuth, h.SetupMfa)
		auth.POST("/verifyMfa", requireAuth, h.VerifyMfa)
		auth.POST("/revokeMfa", requireAuth, h.RevokeMfa)
		auth.GET("/google", h.SocialRedirect(service.ProviderGoogle))
		auth.GET("/google/callback", h.SocialCallback(service.ProviderGoogle))
		auth.GET("/github", h.SocialRedirect(service.ProviderGitHub))
		auth.GET("/github/callback", h.SocialCallback(service.ProviderGitHub))
	}

	sessions := router.Group("/sessions", requireAuth)
	{
		sessions.GET("", h.ListSessions)
		sessions.DELETE("/:id", h.DestroySession)
	}

	users := router.Group("/users", requireAuth, middleware.RequireRoles(models.RoleAdmin))
	{
		users.POST("", h.CreateUser)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}

	tenants := router.Group("/tenants", requireAuth)
	{
		tenants.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.ListTenants)
		tenants.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleManager), h.GetTenant)

		admin := tenants.Group("", middleware.RequireRoles(models.RoleAdmin))
		admin.POST("", h.CreateTenant)
		admin.PATCH("/:id", h.UpdateTenant)
		admin.DELETE("/:id", h.DeleteTenant)
	}
}

func (h HandlerSet) loginRateLimit() gin.HandlerFunc {
	if h.cache == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(h.cache, h.cfg.RateLimit, h.log)
}
