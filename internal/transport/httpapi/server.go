// Package httpapi — REST API кассы на gin.
package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/notify"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	defaultHeartbeat = 25 * time.Second
)

// Option настраивает Server.
type Option func(*Server)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIdempotency включает обработку заголовка Idempotency-Key для проведения и аннулирования.
func WithIdempotency(repo domain.IdempotencyRepository, ttl time.Duration) Option {
	return func(s *Server) {
		if repo != nil {
			s.guard = idempotency.NewGuard(repo, ttl, idempotency.WithGuardLogger(s.logger))
		}
	}
}

// WithBroker включает поток изменений /api/events.
func WithBroker(broker *notify.Broker) Option {
	return func(s *Server) {
		s.broker = broker
	}
}

// WithReportOptions задаёт параметры сводки по умолчанию.
func WithReportOptions(opts report.Options) Option {
	return func(s *Server) {
		s.report = opts
	}
}

// WithCORSOrigins задаёт разрешённые origin. "*" разрешает все.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithHeartbeat задаёт интервал ping-событий в потоке изменений.
func WithHeartbeat(interval time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.heartbeat = interval
		}
	}
}

// Server обслуживает REST API.
type Server struct {
	catalog  *catalog.Service
	checkout *checkout.Engine
	guard    *idempotency.Guard
	broker   *notify.Broker
	report   report.Options

	corsOrigins []string
	heartbeat   time.Duration
	logger      *log.Entry

	streamsDone chan struct{}
	closeOnce   sync.Once
}

// NewServer создаёт REST-сервер поверх каталога и кассы.
func NewServer(catalogSvc *catalog.Service, engine *checkout.Engine, opts ...Option) *Server {
	s := &Server{
		catalog:     catalogSvc,
		checkout:    engine,
		corsOrigins: []string{"*"},
		heartbeat:   defaultHeartbeat,
		logger:      log.WithField("component", "http-api"),
		streamsDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CloseStreams завершает открытые SSE-потоки. Вызывается при остановке
// http.Server, иначе Shutdown ждёт их до таймаута.
func (s *Server) CloseStreams() {
	s.closeOnce.Do(func() { close(s.streamsDone) })
}

// Router собирает gin.Engine со всеми маршрутами и middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(s.logger), requestMetrics(), cors.New(s.corsConfig()))

	api := r.Group("/api")
	{
		api.GET("/products", s.listProducts)
		api.POST("/products", s.createProduct)
		api.GET("/products/:id", s.getProduct)
		api.PUT("/products/:id", s.updateProduct)
		api.DELETE("/products/:id", s.deleteProduct)

		api.GET("/sales", s.listSales)
		api.POST("/sales", s.commitSale)
		api.GET("/sales/:id", s.getSale)
		api.PATCH("/sales/:id", s.updateSaleStatus)

		api.GET("/reports/summary", s.salesSummary)
		api.GET("/payment-methods", s.paymentMethods)

		if s.broker != nil {
			api.GET("/events", s.streamEvents)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": domain.KindNotFound, "message": "route not found"}})
	})
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", idempotencyKeyHeader},
		ExposeHeaders: []string{"Content-Length", replayedHeader},
		MaxAge:        12 * time.Hour,
	}
	origins := make([]string, 0, len(s.corsOrigins))
	for _, origin := range s.corsOrigins {
		switch origin = strings.TrimSpace(origin); origin {
		case "":
			continue
		case "*":
			cfg.AllowAllOrigins = true
			return cfg
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
