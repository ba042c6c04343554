package controllers

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"stylestudioapi/config"
	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/services"
	"stylestudioapi/tasks"

	"github.com/go-playground/validator"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("gender", models.ValidateGender)
	v.RegisterValidation("category", models.ValidateCategory)
	return &CustomValidator{validator: v}
}

// Dependencies are the collaborators shared by every controller.
type Dependencies struct {
	Google     services.GoogleServiceProvider
	Apple      services.AppleServiceProvider
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
	Catalogues services.CatalogueStoreProvider
	Enqueuer   tasks.Enqueuer
	Canceller  tasks.Canceller
	Config     *config.Config
	Log        *logger.Logger
}

func (d Dependencies) jwtSecret() []byte {
	if d.Config != nil && d.Config.Auth.JWTSecret != "" {
		return []byte(d.Config.Auth.JWTSecret)
	}
	return []byte(os.Getenv("JWT_SECRET"))
}

func SetupServer(db *gorm.DB, deps Dependencies) (*echo.Echo, error) {
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if err := deps.AWSService.InitPresignClient(context.Background()); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", deps.Enqueuer)
			c.Set("__asynqinspector", deps.Canceller)
			return next(c)
		}
	})
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(bodyLimit(deps.Config.Studio.MaxUploadBytes)))

	secret := deps.jwtSecret()
	authenticated := []echo.MiddlewareFunc{echojwt.JWT(secret), UserMiddleware}

	authController := AuthController{Google: deps.Google, Apple: deps.Apple, Config: deps.Config, Log: deps.Log}
	authController.AuthRoutes(e.Group("/auth"), authenticated...)

	studioController := StudioController{
		AWSService: deps.AWSService,
		URLCache:   deps.URLCache,
		Catalogues: deps.Catalogues,
		Config:     deps.Config,
		Log:        deps.Log,
	}
	studioController.StudioRoutes(e.Group("/studio", authenticated...))

	catalogueController := CatalogueController{
		AWSService: deps.AWSService,
		URLCache:   deps.URLCache,
		Catalogues: deps.Catalogues,
		Config:     deps.Config,
		Log:        deps.Log,
	}
	catalogueController.CatalogueRoutes(e.Group("/catalogue/:gender", append(authenticated, GenderParamMiddleware)...))

	tryOnController := TryOnController{
		URLCache:   deps.URLCache,
		AWSService: deps.AWSService,
		Catalogues: deps.Catalogues,
		Config:     deps.Config,
		Log:        deps.Log,
	}
	tryOnController.TryOnRoutes(e.Group("/tryon", authenticated...))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	return e, nil
}

// bodyLimit leaves room for several files of the maximum size in one request.
func bodyLimit(maxUploadBytes int64) string {
	if maxUploadBytes <= 0 {
		maxUploadBytes = services.DefaultMaxUploadBytes
	}
	megabytes := maxUploadBytes*maxFilesPerUpload/(1<<20) + 1
	return fmt.Sprintf("%dM", megabytes)
}
