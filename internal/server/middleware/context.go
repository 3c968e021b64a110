package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/loomkg/loom/pkg/memory"
	"github.com/loomkg/loom/pkg/model"
	"github.com/loomkg/loom/pkg/orchestrator"
	"github.com/loomkg/loom/pkg/store"
	"github.com/loomkg/loom/pkg/tool"
)

type AppUser struct {
	UserID string
	Role   string
	Token  string
}

// App bundles the collaborators route handlers need.
type App struct {
	DBConn     *pgxpool.Pool
	Queue      *amqp091.Connection
	Key        *keyfunc.Keyfunc
	S3         *s3.Client
	Model      model.Client
	GraphStore store.GraphStore
	Memory     memory.Store
	Registry   *tool.Registry
	Dispatcher *tool.Dispatcher
	Notifier   orchestrator.Notifier

	MaxRounds    int
	PlanningTool string
	APIBaseURL   string
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware wraps every request context with the shared App.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
