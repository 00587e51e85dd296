package routes

import (
	"github.com/gin-gonic/gin"

	"todo-lifecycle/internal/controller"
	"todo-lifecycle/internal/middleware"
)

type Deps struct {
	Todos     controller.TodoService
	Publisher controller.CommandPublisher
	// JWTSecret enables bearer auth on mutating routes when set.
	JWTSecret string
}

func Router(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())

	h := controller.NewTodoController(d.Todos, d.Publisher)

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", h.Ready)

	todos := router.Group("/api/todos")
	todos.GET("", h.List)
	todos.GET("/:id", h.Get)

	write := todos.Group("")
	if d.JWTSecret != "" {
		write.Use(middleware.Auth(d.JWTSecret))
	}
	{
		write.POST("", h.Create)
		write.POST("/commands", h.SubmitCommand)
		write.PATCH("/:id/description", h.UpdateDescription)
		write.PATCH("/:id/status", h.UpdateStatus)
		write.PATCH("/:id/done", h.MarkDone)
		write.PATCH("/:id/not-done", h.MarkNotDone)
	}

	return router
}
