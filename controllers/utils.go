package controllers

import (
	"net/http"
	"strconv"
	"time"

	"stylestudioapi/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const (
	accessTokenLifetime  = time.Hour * 72
	refreshTokenLifetime = time.Hour * 24 * 30 * 12
)

func UIntToStr(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}

func GenerateUserToken(userPk string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenLifetime)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	return token.SignedString(secret)
}

func GenerateRefreshToken(userPk string, secret []byte) (string, error) {
	refreshToken := jwt.New(jwt.SigningMethodHS256)
	rtClaims := refreshToken.Claims.(jwt.MapClaims)
	rtClaims["sub"] = userPk
	rtClaims["typ"] = "refresh"
	rtClaims["exp"] = time.Now().Add(refreshTokenLifetime).Unix()
	return refreshToken.SignedString(secret)
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{"error": message})
}

func currentUser(c echo.Context) (models.UserAccount, bool) {
	user, ok := c.Get("currentUser").(models.UserAccount)
	return user, ok
}

func currentDB(c echo.Context) *gorm.DB {
	db, _ := c.Get("__db").(*gorm.DB)
	return db.WithContext(c.Request().Context())
}

func pathUint(c echo.Context, name string) (uint, error) {
	var value uint
	err := echo.PathParamsBinder(c).Uint(name, &value).BindError()
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return value, nil
}
