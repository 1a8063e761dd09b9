package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/chuka-black-market/marketplace/middleware"
	"github.com/chuka-black-market/marketplace/relay"
	"github.com/chuka-black-market/marketplace/service"
	"github.com/chuka-black-market/marketplace/web"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	BodyLimit      int

	// UploadDir is served under UploadPath when images live on local disk.
	UploadDir  string
	UploadPath string
	// Images serves /api/images/:id when images live in GridFS.
	Images ImageSource

	// AccessLog enables the request logger.
	AccessLog bool
}

// NewApp wires every route onto a new Fiber app.
func NewApp(svc *service.ListingService, hub *relay.Hub, opts Options) *fiber.App {
	engine := html.NewFileSystem(http.FS(web.Templates()), ".html")
	engine.AddFuncMap(TemplateFuncs)

	app := fiber.New(fiber.Config{
		AppName:      "Chuka Black Market",
		ErrorHandler: ErrorHandler,
		BodyLimit:    opts.BodyLimit,
		Views:        engine,
		ViewsLayout:  "layouts/main",
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New()) // Basic request logging
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: originList(opts.AllowedOrigins),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	auth := middleware.JWTAuth(opts.JWTSecret)

	api := app.Group("/api")
	api.Get("/test", HandleTest(svc))
	(&ListingHandler{Service: svc}).RegisterRoutes(api, auth)
	if opts.Images != nil {
		api.Get("/images/:id", HandleImage(opts.Images))
	}

	if opts.UploadDir != "" {
		app.Static(opts.UploadPath, opts.UploadDir, fiber.Static{ByteRange: true})
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		// Check if the request is a WebSocket upgrade request
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(HandleWebSocket(hub), websocket.Config{
		Origins: opts.AllowedOrigins,
	}))

	(&PageHandler{Service: svc}).RegisterRoutes(app, auth)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not found")
	})
	return app
}

func originList(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
