package router

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/cuongbtq/repair-tracker/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()

	if deps.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = deps.MaxUploadBytes
	}

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "repair-api-service",
		})
	})

	if deps.UploadsDir != "" {
		prefix := deps.UploadsPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		r.Static(prefix, deps.UploadsDir)
	}

	authHandler := handler.NewAuthHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	uploadHandler := handler.NewUploadHandler(deps)

	requireAuth := AuthMiddleware(deps.Tokens)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", requireAuth, authHandler.Me)
	}

	jobs := r.Group("/repair-jobs", requireAuth)
	{
		jobs.GET("", jobHandler.ListJobs)
		jobs.POST("", jobHandler.CreateJob)
		jobs.PUT("/:id", jobHandler.UpdateJob)
		jobs.DELETE("/:id", jobHandler.DeleteJob)
	}

	r.POST("/upload", requireAuth, uploadHandler.UploadImages)

	return r
}

// useJSONFieldNames makes binding errors report json field names
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}
