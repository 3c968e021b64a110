package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomkg/loom/internal/notify"
	"github.com/loomkg/loom/internal/providers/graphtools"
	"github.com/loomkg/loom/internal/providers/literature"
	"github.com/loomkg/loom/internal/providers/planner"
	mid "github.com/loomkg/loom/internal/server/middleware"
	"github.com/loomkg/loom/internal/storage"
	"github.com/loomkg/loom/internal/util"
	"github.com/loomkg/loom/pkg/logger"
	"github.com/loomkg/loom/pkg/memory"
	memredis "github.com/loomkg/loom/pkg/memory/redis"
	"github.com/loomkg/loom/pkg/model"
	"github.com/loomkg/loom/pkg/model/ollama"
	"github.com/loomkg/loom/pkg/model/openai"
	storepgx "github.com/loomkg/loom/pkg/store/pgx"
	"github.com/loomkg/loom/pkg/tool"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func runMigrations() {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to initialize migrations", "err", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

func newModelClient() model.Client {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := ollama.NewChatModelClient(ollama.NewChatModelClientParams{
			ChatModel:   util.GetEnv("AI_CHAT_MODEL"),
			FormatModel: util.GetEnv("AI_FORMAT_MODEL"),
			BaseURL:     util.GetEnv("AI_CHAT_URL"),
			ApiKey:      util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return openai.NewChatModelClient(openai.NewChatModelClientParams{
			ChatModel:   util.GetEnv("AI_CHAT_MODEL"),
			FormatModel: util.GetEnv("AI_FORMAT_MODEL"),
			ChatURL:     util.GetEnv("AI_CHAT_URL"),
			ChatKey:     util.GetEnv("AI_CHAT_KEY"),
		})
	}
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runMigrations()

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := notify.Init()
	defer que.Close()
	amqpNotifier, err := notify.NewAMQPNotifier(que)
	if err != nil {
		logger.Fatal("Failed to set up notification exchange", "err", err)
	}

	var conversationStore memory.Store
	if redisURL := util.GetEnv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Fatal("Invalid REDIS_URL", "err", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", "err", err)
		}
		defer rdb.Close()
		ttl := time.Duration(util.GetEnvNumeric("CONVERSATION_TTL_HOURS", 72)) * time.Hour
		conversationStore = memredis.NewStore(rdb, ttl)
	} else {
		logger.Warn("REDIS_URL not set, conversation histories stay in process memory")
		conversationStore = memory.NewInMemoryStore()
	}

	s3 := storage.NewS3Client(ctx)

	graphStore := storepgx.NewGraphDBStore(conn)
	modelClient := newModelClient()

	registry := tool.NewRegistry()
	if err := registry.Register(planner.Provider()); err != nil {
		logger.Fatal("Failed to register planner provider", "err", err)
	}
	if err := registry.Register(graphtools.Provider(graphStore)); err != nil {
		logger.Fatal("Failed to register graph provider", "err", err)
	}
	lit := literature.NewClient(util.GetEnv("LITERATURE_URL"))
	if err := registry.Register(lit.Provider()); err != nil {
		logger.Fatal("Failed to register literature provider", "err", err)
	}

	timeout := time.Duration(util.GetEnvNumeric("TOOL_TIMEOUT_SECONDS", 120)) * time.Second
	dispatcher := tool.NewDispatcher(registry, timeout)

	app := &mid.App{
		DBConn:     conn,
		Queue:      que,
		Key:        &k,
		S3:         s3,
		Model:      modelClient,
		GraphStore: graphStore,
		Memory:     conversationStore,
		Registry:   registry,
		Dispatcher: dispatcher,
		Notifier:   amqpNotifier,

		MaxRounds:    int(util.GetEnvNumeric("MAX_TOOL_ROUNDS", 16)),
		PlanningTool: planner.ToolName,
		APIBaseURL:   util.GetEnv("API_BASE_URL"),
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
