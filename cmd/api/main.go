package main

import (
	"context"

	"dealintake/cmd/internal/config"
	"dealintake/cmd/internal/domain/sqlite"
	"dealintake/cmd/internal/domain/sqlite/repository"
	cognitoclient "dealintake/cmd/internal/integration/aws/cognito"
	"dealintake/cmd/internal/integration/google/calendarclient"
	"dealintake/cmd/internal/integration/google/driveclient"
	"dealintake/cmd/internal/integration/mailer"
	"dealintake/cmd/internal/integration/slackclient"
	"dealintake/cmd/internal/jobs"
	"dealintake/cmd/internal/report"
	"dealintake/cmd/internal/routes"
	"dealintake/cmd/internal/service"
	"dealintake/cmd/internal/utils"
	"dealintake/cmd/internal/utils/validators"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file found, reading configuration from the environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	validate := validator.New()
	registerValidators(validate)

	// Init SQLite
	db, err := sqlite.Init(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to initialize database", err)
	}

	// Cognito client
	cogClient, err := cognitoclient.InitCognitoClient(cfg.CognitoClientID, cfg.CognitoUserPoolID)
	if err != nil {
		log.Fatal("failed to initialize cognito client", err)
	}

	// Bearer tokens are verified against the user pool's JWKS.
	if err := utils.InitTokenVerifier(cfg.AWSRegion, cfg.CognitoUserPoolID); err != nil {
		log.Fatal("failed to initialize token verifier", err)
	}

	ctx := context.Background()

	// Google Calendar backs every meeting endpoint; there is no degraded mode.
	if cfg.GoogleCredentialsJSON == "" {
		log.Fatal("GOOGLE_CREDENTIALS is required")
	}
	calClient, err := calendarclient.NewGoogleCalendarClient(ctx, []byte(cfg.GoogleCredentialsJSON), cfg.GoogleCalendarID, cfg.CalendarTimezone, cfg.ProviderTimeout)
	if err != nil {
		log.Fatal("failed to initialize calendar client", err)
	}

	// Getting repositories
	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	linkRepo := repository.NewEventLinkRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	// Submission pipeline collaborators. Drive, SMTP and Slack are each
	// optional; a stage with a nil collaborator is skipped.
	renderer, err := report.NewHTMLRenderer(cfg.CompanyName)
	if err != nil {
		log.Fatal("failed to initialize report renderer", err)
	}

	var uploader driveclient.Uploader
	if cfg.DriveFolderID != "" {
		driveClient, err := driveclient.NewGoogleDriveClient(ctx, []byte(cfg.GoogleCredentialsJSON), cfg.DriveFolderID, cfg.ProviderTimeout)
		if err != nil {
			log.Fatal("failed to initialize drive client", err)
		}
		uploader = driveClient
	} else {
		log.Warn("GOOGLE_DRIVE_FOLDER_ID not set, report upload disabled")
	}

	var sender mailer.Sender
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromEmail)
	} else {
		log.Warn("SMTP credentials not set, confirmation email disabled")
	}

	var notifier slackclient.Notifier
	if cfg.SlackWebhook != "" {
		notifier = slackclient.NewWebhookNotifier(cfg.SlackWebhook, cfg.SlackChannel)
	} else {
		log.Warn("SLACK_WEBHOOK_URL not set, slack notifications disabled")
	}

	queue := jobs.NewQueue(cfg.JobWorkers, cfg.JobRetries)
	queue.Start()
	defer queue.Stop()

	pipeline := &jobs.Pipeline{
		Store:       submissionRepo,
		Renderer:    renderer,
		Uploader:    uploader,
		Mailer:      sender,
		Slack:       notifier,
		Queue:       queue,
		CompanyName: cfg.CompanyName,
	}

	// Getting services
	userService := service.NewUserService(userRepo, validate, cogClient)
	meetingService := service.NewMeetingService(calClient, ledgerRepo, linkRepo, validate, cfg.DefaultCapacity, cfg.DefaultSlotLimit, cfg.LookupWindow())
	adminService := service.NewMeetingAdminService(calClient, linkRepo, userRepo, validate, cfg.LookupWindow())
	submissionService := service.NewSubmissionService(submissionRepo, userRepo, pipeline, validate)

	// Getting routes
	userRoutes := routes.NewUserDefault(userService)
	meetingRoutes := routes.NewMeetingDefault(meetingService)
	adminRoutes := routes.NewMeetingAdminDefault(adminService)
	submissionRoutes := routes.NewSubmissionDefault(submissionService)

	e := echo.New()
	e.Use(middleware.CORS())

	// Meetings
	e.GET("/api/meetings/slots", meetingRoutes.GetSlots)
	e.GET("/api/meetings/occurrences/:id", meetingRoutes.GetOccurrenceDetail)
	e.GET("/api/meetings/occurrences/:id/registrations", meetingRoutes.GetRegistrationCount)
	e.POST("/api/meetings/register", meetingRoutes.Register)

	// Submissions
	e.POST("/api/submissions", submissionRoutes.CreateSubmission)
	e.GET("/api/submissions", submissionRoutes.GetSubmissions)
	e.GET("/api/submissions/:id", submissionRoutes.GetSubmission)
	e.POST("/api/submissions/:id/regenerate", submissionRoutes.RegenerateReport)

	// Admin event management
	e.POST("/api/admin/events", adminRoutes.CreateEvent)
	e.PATCH("/api/admin/events/:id", adminRoutes.UpdateEvent)
	e.DELETE("/api/admin/events/:id", adminRoutes.DeleteEvent)
	e.POST("/api/admin/events/preview", adminRoutes.PreviewOccurrences)
	e.POST("/api/admin/events/sync", adminRoutes.SyncEventLinks)

	// Users
	e.GET("/api/users", userRoutes.GetUsers)
	e.GET("/api/users/:id", userRoutes.GetUser)
	e.POST("/api/users", userRoutes.CreateUser)
	e.POST("/api/users/login", userRoutes.CreateLogin)
	e.POST("/api/users/verify", userRoutes.VerifySignup)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	err = e.Start(":" + cfg.Port)
	if err != nil {
		e.Logger.Fatal(err)
	}
}

func registerValidators(validate *validator.Validate) {
	_ = validate.RegisterValidation("hasupper", validators.HasUpper)
	_ = validate.RegisterValidation("haslower", validators.HasLower)
	_ = validate.RegisterValidation("hasdigit", validators.HasDigit)
	_ = validate.RegisterValidation("hasspecial", validators.HasSpecial)
	_ = validate.RegisterValidation("nospaces", validators.NoWhiteSpaces)
	_ = validate.RegisterValidation("iso8601", validators.IsIso8601)
}
