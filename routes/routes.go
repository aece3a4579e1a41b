package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"mapslead/ai"
	"mapslead/analytics"
	controller "mapslead/controllers"
	"mapslead/middleware"
	"mapslead/worker"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	DB         *gorm.DB
	Sims       *worker.Simulations
	Aggregator *analytics.Aggregator
	Drafter    *ai.Drafter
	Logger     *logrus.Entry

	JWTSecret       string
	RememberMeDays  int
	CORSOrigins     []string
	RateLimitStart  int
	LimiterStorage  fiber.Storage
	MetricsGatherer prometheus.Gatherer

	// AccessLog enables the request logger middleware
	AccessLog bool
}

func SetupRoutes(app *fiber.App, d Deps) {
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(d.CORSOrigins)))

	if d.MetricsGatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	if d.AccessLog {
		api.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}

	health := controller.NewHealthController(d.DB)
	api.Get("/health", health.Health)

	SetupAuthRoutes(api, d)

	protected := middleware.Protected(d.DB, d.JWTSecret)
	startLimiter := middleware.StartRateLimiter(d.RateLimitStart, d.LimiterStorage)

	// Scraper routes
	scraperController := controller.NewScraperController(d.DB, d.Sims, d.Logger.WithField("component", "scraper"))
	scraper := api.Group("/scraper", protected)
	scraper.Post("/start", startLimiter, scraperController.StartScraper)
	scraper.Get("/status/:id", scraperController.GetStatus)
	scraper.Get("/jobs", scraperController.ListJobs)
	scraper.Delete("/job/:id", scraperController.DeleteJob)

	// Lead routes
	leadController := controller.NewLeadController(d.DB, d.Logger.WithField("component", "leads"))
	leads := api.Group("/leads", protected)
	leads.Get("/", leadController.GetLeads)
	leads.Post("/", leadController.CreateLead)
	leads.Post("/bulk-delete", leadController.BulkDeleteLeads)
	leads.Get("/:id", leadController.GetLead)
	leads.Put("/:id", leadController.UpdateLead)
	leads.Delete("/:id", leadController.DeleteLead)
	leads.Post("/:id/notes", leadController.AddNote)
	leads.Post("/:id/tags", leadController.SetTags)

	// Campaign routes
	campaignController := controller.NewCampaignController(d.DB, d.Sims, d.Logger.WithField("component", "campaigns"))
	campaigns := api.Group("/campaigns", protected)
	campaigns.Post("/", startLimiter, campaignController.CreateCampaign)
	campaigns.Get("/", campaignController.ListCampaigns)
	campaigns.Get("/:id", campaignController.GetCampaign)
	campaigns.Get("/:id/logs", campaignController.GetCampaignLogs)
	campaigns.Delete("/:id", campaignController.DeleteCampaign)

	// AI routes
	aiController := controller.NewAIController(d.Drafter, d.Logger.WithField("component", "ai"))
	api.Post("/ai/generate-follow-up", protected, aiController.GenerateFollowUp)

	// Analytics routes
	analyticsController := controller.NewAnalyticsController(d.Aggregator, d.Logger.WithField("component", "analytics"))
	stats := api.Group("/analytics", protected)
	stats.Get("/dashboard", analyticsController.Dashboard)
	stats.Get("/summary", analyticsController.Summary)
	stats.Get("/sources", analyticsController.Sources)
	stats.Get("/engagement", analyticsController.Engagement)

	// Progress streams
	progress := controller.NewProgressController(d.DB, d.Logger.WithField("component", "progress"))
	ws := api.Group("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, protected)
	ws.Get("/scraper/:id", websocket.New(progress.StreamJob))
	ws.Get("/campaigns/:id", websocket.New(progress.StreamCampaign))

	d.Logger.Info("Routes initialized successfully")
}

func SetupAuthRoutes(api fiber.Router, d Deps) {
	authController := controller.NewAuthController(d.DB, d.Logger.WithField("component", "auth"), d.JWTSecret, d.RememberMeDays)

	auth := api.Group("/auth")
	auth.Post("/register", authController.Register)
	auth.Post("/login", authController.Login)
	auth.Get("/me", middleware.Protected(d.DB, d.JWTSecret), authController.Me)
}
