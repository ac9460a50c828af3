package router

import (
	"github.com/ReconquistaDigital/MemberHub/app/controllers"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Initialize webhook controller with service + mailer
	controllers.InitializeWebhookController()

	app.Get("/health", controllers.HandleHealth)

	// Magic-link exchange is rate limited; the token itself is the credential.
	app.Get("/auto-login", limiter.New(), controllers.HandleAutoLogin)

	api := app.Group("/api")
	api.Post("/webhook/lojou", controllers.HandleLojouWebhook)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

// InstallRouter wires all routes into the Fiber app.
func InstallRouter(app *fiber.App) {
	setup(app, NewHttpRouter())
}

type Router interface {
	InstallRouter(app *fiber.App)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
