package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"cartsync/internal/ctapi"
	"cartsync/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const projectCtxKey ctxKey = "project"

type projectRepo interface {
	GetByKey(ctx context.Context, key string) (*domain.Project, error)
}

type cartService interface {
	GetForSession(ctx context.Context, project domain.Project, sessionID string) (*domain.Cart, error)
	UpdateForSession(ctx context.Context, project domain.Project, sessionID string, in ctapi.UpdateRequest) (*domain.Cart, error)
}

// Deps are the collaborators the routes need.
type Deps struct {
	ProjectRepo projectRepo
	CartSvc     cartService
	// Token is the bearer token clients must present. Empty disables auth.
	Token       string
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *logrus.Entry, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.ProjectRepo == nil || deps.CartSvc == nil {
		return nil, errors.New("httpserver: project repository and cart service are required")
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery(), traceMiddleware())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	project := router.Group("/:projectKey", authMiddleware(deps.Token), projectMiddleware(deps.ProjectRepo))
	h := cartHandlers{svc: deps.CartSvc, logger: logger.WithField("component", "http")}
	project.GET("/sessions/:sessionID/cart", h.get)
	project.POST("/sessions/:sessionID/cart", h.update)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Accept", "traceparent", "tracestate"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// traceMiddleware continues the caller's trace from the request headers.
func traceMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("cartsync/httpserver")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// projectMiddleware resolves :projectKey and stores the project on the
// request context.
func projectMiddleware(repo projectRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.Param("projectKey"))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, ctapi.NewError(http.StatusBadRequest, ctapi.CodeInvalidInput, "project key required"))
			return
		}
		project, err := repo.GetByKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, ctapi.NewError(http.StatusNotFound, ctapi.CodeResourceNotFound, "project "+key+" not found"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, ctapi.NewError(http.StatusInternalServerError, ctapi.CodeGeneral, "failed to load project"))
			return
		}
		ctx := context.WithValue(c.Request.Context(), projectCtxKey, project)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func authMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ctapi.NewError(http.StatusUnauthorized, "invalid_token", "missing or invalid bearer token"))
			return
		}
		c.Next()
	}
}

func projectFrom(c *gin.Context) (domain.Project, bool) {
	p, ok := c.Request.Context().Value(projectCtxKey).(*domain.Project)
	if !ok || p == nil {
		return domain.Project{}, false
	}
	return *p, true
}
