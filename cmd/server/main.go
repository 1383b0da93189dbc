package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/school-lms/internal/api"
	"github.com/Spok95/school-lms/internal/app"
	"github.com/Spok95/school-lms/internal/config"
	"github.com/Spok95/school-lms/internal/db"
	"github.com/Spok95/school-lms/internal/jobs"
	"github.com/Spok95/school-lms/internal/logging"
	"github.com/Spok95/school-lms/internal/notify"
	"github.com/Spok95/school-lms/internal/observability"
	"github.com/Spok95/school-lms/internal/workflow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		lg.Sugar.Warnw("sentry init failed", "err", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		lg.Base.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.MigrateUp(ctx, database); err != nil {
		lg.Base.Fatal("migrations", zap.Error(err))
	}

	eng := workflow.New(db.NewStore(database),
		workflow.WithNotifier(newNotifier(cfg, lg.Base)),
		workflow.WithLogger(lg.Base.Named("workflow")),
		workflow.WithPolicy(workflow.Policy{
			AllowedDomains: cfg.AllowedEmailDomains,
			PasswordMinLen: cfg.PasswordMinLen,
		}),
	)

	app.StartOps(ctx, cfg.OpsAddr, database, lg.Base)

	runner := jobs.New(ctx, lg.Base.Named("jobs"))
	runner.Every(cfg.ReminderInterval, "invite_reminders", jobs.InviteReminders(eng, cfg.InviteReminderAfter))

	srv := api.New(eng, api.NewTokens(cfg.JWTSecret, cfg.JWTTTL), lg.Base.Named("http"))
	go func() {
		<-ctx.Done()
		if err := srv.ShutdownWithTimeout(10 * time.Second); err != nil {
			lg.Base.Warn("api shutdown", zap.Error(err))
		}
	}()

	lg.Base.Info("listening", zap.String("api", cfg.HTTPAddr), zap.String("ops", cfg.OpsAddr))
	if err := srv.Listen(cfg.HTTPAddr); err != nil {
		lg.Base.Error("api stopped", zap.Error(err))
	}

	stop()
	runner.Wait()
	lg.Base.Info("bye")
}

// newNotifier — Telegram при наличии BOT_TOKEN, иначе только лог.
func newNotifier(cfg *config.Config, log *zap.Logger) workflow.Notifier {
	fallback := notify.NewLog(log.Named("notify"))
	if cfg.BotToken == "" {
		return fallback
	}
	tg, err := notify.NewTelegram(cfg.BotToken, fallback)
	if err != nil {
		log.Warn("telegram disabled", zap.Error(err))
		return fallback
	}
	return tg
}
