package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlimiter "github.com/gofiber/fiber/v2/middleware/limiter"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"

	"github.com/booksurf/booksurf"
	"github.com/booksurf/booksurf/workflow"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("booksurf"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg, err := booksurf.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	repo := booksurf.NewRepositoryManager(db)
	repo.MustValidate()

	sessions := booksurf.NewSessionService(cfg.Session)

	limiter := booksurf.NewFixedWindowLimiter(
		cfg.RateLimit.Max,
		time.Duration(cfg.RateLimit.WindowSec)*time.Second,
	)

	var mailer booksurf.Mailer
	if cfg.Mail.Endpoint != "" {
		mailer = booksurf.NewHTTPMailer(
			cfg.Mail.Endpoint,
			cfg.Mail.Token,
			cfg.Mail.From,
			booksurf.WithMailerLogger(lgr.GetLogger("mailer")),
		)
	} else {
		mailer = booksurf.NewConsoleMailer(lgr.GetLogger("mailer"))
	}

	var trigger booksurf.WorkflowTrigger
	if cfg.Workflows.Endpoint != "" {
		trigger = workflow.NewClient(
			cfg.Workflows.Endpoint,
			workflow.WithToken(cfg.Workflows.Token),
			workflow.WithClientLogger(lgr.GetLogger("workflow")),
		)
	}

	tracker := booksurf.NewActivityTracker(
		repo.Users(),
		booksurf.WithActivityLogger(lgr.GetLogger("activity")),
	)

	engagement := booksurf.NewEngagement(
		repo.Users(),
		mailer,
		booksurf.WithEngagementLogger(lgr.GetLogger("engagement")),
	)

	onboardingURL := cfg.Server.BaseURL + "/api/workflows/onboarding"
	signUp := booksurf.NewSignUpHandler(repo, limiter, trigger, onboardingURL, lgr.GetLogger("sign-up"))
	signIn := booksurf.NewSignInHandler(repo, limiter, sessions, lgr.GetLogger("sign-in"))

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app := router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))

		// router.Context has no address accessor, so capture the client
		// address before the adapter takes over
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("client_addr", c.IP())
			return c.Next()
		})

		// second limiter at the transport edge, in front of the per-handler
		// checks
		app.Use("/auth", fiberlimiter.New(fiberlimiter.Config{
			Max:        cfg.RateLimit.Max * 2,
			Expiration: time.Duration(cfg.RateLimit.WindowSec) * time.Second,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Redirect(booksurf.TooFastRoute, fiber.StatusSeeOther)
			},
		}))

		return app
	})

	srv.Router().WithLogger(lgr.GetLogger("router"))

	booksurf.RegisterRoutes(srv.Router(),
		booksurf.WithControllerLogger(lgr.GetLogger("http")),
		booksurf.WithControllerRepo(repo),
		booksurf.WithControllerSessions(sessions),
		booksurf.WithControllerHandlers(signUp, signIn),
		booksurf.WithControllerTracker(tracker),
		booksurf.WithControllerEngagement(engagement),
	)

	appLogger := lgr.GetLogger("app")
	appLogger.Info("listening on %s", cfg.Server.Addr)

	srv.Serve(cfg.Server.Addr)

	WaitExitSignal()
}

func openDatabase(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		return nil, err
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *bun.DB) error {
	migrationsFS, err := fs.Sub(booksurf.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(migrationsFS); err != nil {
		return err
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}

	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
