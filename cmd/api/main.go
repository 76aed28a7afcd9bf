package main

import (
	"log"
	"time"

	config "github.com/dersly/backend/configs"
	"github.com/dersly/backend/database"
	"github.com/dersly/backend/handlers"
	"github.com/dersly/backend/jobs"
	"github.com/dersly/backend/meetings"
	"github.com/dersly/backend/notifications"
	"github.com/dersly/backend/payments"
	"github.com/dersly/backend/repository"
	"github.com/dersly/backend/routes"
	"github.com/dersly/backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()

	settings := config.LoadSettings()

	appointmentRepo := repository.NewAppointmentRepository(database.DB)
	availabilityRepo := repository.NewAvailabilityRepository(database.DB)
	directoryRepo := repository.NewDirectoryRepository(database.DB)
	walletRepo := repository.NewWalletRepository(database.DB)
	jobRepo := repository.NewJobRepository(database.DB)

	var notifier notifications.Dispatcher
	if email := notifications.NewEmailDispatcher(); email != nil {
		notifier = email
	}
	gateway := payments.NewCheckoutClient()
	meetingProvider := meetings.NewRoomClient()

	availabilityService := services.NewAvailabilityService(availabilityRepo, settings.Timezone)
	settlementService := services.NewSettlementService(walletRepo, appointmentRepo, settings.Timezone)
	payoutService := services.NewPayoutService(settlementService, directoryRepo, notifier)
	appointmentService := services.NewAppointmentService(
		appointmentRepo,
		directoryRepo,
		availabilityService,
		settlementService,
		gateway,
		meetingProvider,
		notifier,
		settings,
	)

	scheduler := jobs.NewScheduler(jobRepo)
	jobs.RegisterAppointmentHandlers(scheduler, appointmentService)

	c := cron.New()
	c.AddFunc("* * * * *", scheduler.RunDuePass)
	go c.Start()
	log.Println("✅ Deferred job due pass scheduled successfully.")

	app := fiber.New(fiber.Config{
		AppName:       "Dersly",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	appointmentHandler := handlers.NewAppointmentHandler(appointmentService)
	teacherHandler := handlers.NewTeacherHandler(appointmentService)
	paymentHandler := handlers.NewPaymentHandler(appointmentService)
	adminHandler := handlers.NewAdminHandler(appointmentService, settlementService, payoutService)

	routes.AppointmentRoutes(app, appointmentHandler, teacherHandler)
	routes.PaymentRoutes(app, paymentHandler)
	routes.AdminRoutes(app, adminHandler)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	err := app.Listen(":8080")
	if err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
