package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/app"
	"github.com/edubridge/edubridge-backend/internal/board"
	"github.com/edubridge/edubridge-backend/internal/config"
	"github.com/edubridge/edubridge-backend/internal/conversation"
	"github.com/edubridge/edubridge-backend/internal/db"
	"github.com/edubridge/edubridge-backend/internal/directory"
	"github.com/edubridge/edubridge-backend/internal/httpapi"
	"github.com/edubridge/edubridge-backend/internal/jobs"
	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/mailer"
	"github.com/edubridge/edubridge-backend/internal/matcher"
	"github.com/edubridge/edubridge-backend/internal/notify"
	"github.com/edubridge/edubridge-backend/internal/observability"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/session"
	"github.com/edubridge/edubridge-backend/internal/storage"
	"github.com/edubridge/edubridge-backend/internal/tg"
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
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	store := db.NewStore(pool)

	// Redis: pub/sub и кэш сессий; без него всё живёт в памяти процесса
	var (
		broker realtime.Broker = realtime.NewMemoryBroker()
		cache  session.Cache   = session.NewMemoryCache()
		rdb    *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer rdb.Close()
		broker = realtime.NewRedisBroker(rdb, lg.Component("realtime"))
		cache = session.NewRedisCache(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, realtime and sessions are in-memory")
	}

	var bucket storage.Bucket = storage.NewMemory(cfg.PublicURL)
	if cfg.MongoURI != "" {
		gfs, err := storage.OpenGridFS(ctx, cfg.MongoURI, cfg.MongoDB, cfg.PublicURL)
		if err != nil {
			logger.Fatal("gridfs", zap.Error(err))
		}
		defer func() { _ = gfs.Close(context.Background()) }()
		bucket = gfs
	} else {
		logger.Warn("MONGO_URI not set, attachments are kept in memory")
	}

	relay := mailer.NewSMTPRelay(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
	var outbound mailer.Sender = relay
	switch {
	case cfg.NotifyEndpointURL != "":
		outbound = mailer.NewEndpointClient(cfg.NotifyEndpointURL, &http.Client{Timeout: 20 * time.Second})
	case !relay.Configured():
		logger.Warn("SMTP credentials not set, doubt notifications are disabled")
		outbound = mailer.Nop{}
	}

	alerts, err := tg.NewAlerter(cfg.BotToken, cfg.AdminChatIDs, lg.Component("alerts"))
	if err != nil {
		logger.Warn("telegram alerts disabled", zap.Error(err))
	}

	var verifier directory.IdentityVerifier
	var oauth *directory.GoogleOAuth
	if cfg.GoogleEnabled() {
		gv, err := directory.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			logger.Fatal("google verifier", zap.Error(err))
		}
		verifier = gv
		if cfg.GoogleClientSecret != "" && cfg.GoogleRedirectURL != "" {
			oauth = directory.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		}
	}

	rt := realtime.NewManager(broker)
	notifier := notify.New(store, outbound, cfg.AppBaseURL, alerts, lg.Component("notify"))

	api := httpapi.NewServer(httpapi.Deps{
		Directory:    directory.New(store, verifier, broker, lg.Component("directory")),
		Board:        board.New(store, notifier, broker, lg.Component("board")),
		Matcher:      matcher.New(matcher.NewPostgresStore(store), broker, lg.Component("matcher")),
		Conversation: conversation.New(store, bucket, app.NewUploadLimiter(), broker, lg.Component("conversation")),
		Sessions:     session.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL, cache),
		Realtime:     rt,
		Mail:         relay,
		OAuth:        oauth,
		CORSOrigins:  cfg.CORSOrigins,
		AppBaseURL:   cfg.AppBaseURL,
		Log:          lg.Component("http"),
	})

	jobs.StartStatusJobs(jobs.New(ctx), store, lg.Component("jobs"))
	srv := app.StartHTTP(ctx, cfg.HTTPAddr, app.NewMux(store, api.Router()), logger)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-srv.Done():
		// порт занят или listener упал: без API процесс не нужен
		stop()
	}
	rt.Close()
	<-srv.Done()
	notifier.Wait()
	if err := srv.Err(); err != nil {
		logger.Error("http server failed", zap.Error(err))
		flush()
		lg.Closer()
		os.Exit(1)
	}
	logger.Info("bye")
}
