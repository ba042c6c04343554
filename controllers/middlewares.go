package controllers

import (
	"errors"
	"net/http"

	"stylestudioapi/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// UserMiddleware loads the account named by the bearer token into "currentUser".
func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		token, ok := userRaw.(*jwt.Token)
		if !ok {
			return echo.ErrUnauthorized
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return echo.ErrUnauthorized
		}
		userId, ok := claims["sub"].(string)
		if !ok || userId == "" {
			return echo.ErrUnauthorized
		}

		var currentUser models.UserAccount
		result := db.Where("id = ?", userId).Take(&currentUser)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return echo.ErrUnauthorized
		}
		if result.Error != nil {
			return echo.ErrInternalServerError
		}
		if currentUser.Banned || currentUser.ConfirmedDeleteDate != nil {
			return echo.NewHTTPError(http.StatusLocked)
		}
		c.Set("currentUser", currentUser)
		return next(c)
	}
}

// GenderParamMiddleware validates the :gender path segment into "gender".
func GenderParamMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		gender := c.Param("gender")
		if !models.ValidateGenderRaw(gender) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown gender, expected female or male"})
		}
		c.Set("gender", models.Gender(gender))
		return next(c)
	}
}
