package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stylestudioapi/config"
	"stylestudioapi/logger"
	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type AuthController struct {
	Google services.GoogleServiceProvider
	Apple  services.AppleServiceProvider
	Config *config.Config
	Log    *logger.Logger
}

type RefreshTokenIn struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (m *AuthController) AuthRoutes(g *echo.Group, authenticated ...echo.MiddlewareFunc) {
	g.POST("/google", m.GoogleSignIn)
	g.POST("/apple", m.AppleSignIn)
	g.POST("/refresh-token", m.RefreshToken)

	g.GET("/me", m.Me, authenticated...)
	g.POST("/settings", m.Settings, authenticated...)
	g.POST("/register-push", m.RegisterPush, authenticated...)
	g.POST("/delete-push", m.DeletePush, authenticated...)
	g.POST("/delete-account", m.DeleteAccount, authenticated...)
}

func (m *AuthController) secret() []byte {
	return Dependencies{Config: m.Config}.jwtSecret()
}

func (m *AuthController) signIn(c echo.Context, user *models.UserAccount, created bool) error {
	if user.Banned {
		return errorJSON(c, http.StatusForbidden, "Sorry, your access is blocked")
	}
	accessToken, err := GenerateUserToken(UIntToStr(user.ID), m.secret())
	if err != nil {
		m.Log.Error("failed to sign access token", "user_account_id", user.ID, "error", err)
		return echo.ErrInternalServerError
	}
	refreshToken, err := GenerateRefreshToken(UIntToStr(user.ID), m.secret())
	if err != nil {
		m.Log.Error("failed to sign refresh token", "user_account_id", user.ID, "error", err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, models.SignInOut{
		Id:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		New:          created,
		Avatar:       user.AvatarURL,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

func (m *AuthController) GoogleSignIn(c echo.Context) error {
	var req models.GoogleAuthSignIn
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	payload, err := m.Google.ValidateIdToken(c.Request().Context(), req.IdToken, m.Config.Auth.GoogleClientID)
	if err != nil {
		m.Log.Info("google token rejected", "error", err)
		return errorJSON(c, http.StatusForbidden, "Couldn't verify credentials")
	}
	googleID, _ := payload.Claims["sub"].(string)
	email, _ := payload.Claims["email"].(string)
	if googleID == "" || email == "" {
		sentry.CaptureMessage(fmt.Sprintf("Google sign-in without sub or email: %v", payload.Claims))
		return errorJSON(c, http.StatusForbidden, "Couldn't verify credentials")
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	db := currentDB(c)
	var user models.UserAccount
	r := db.Where("google_id = ?", googleID).Limit(1).Find(&user)
	if r.Error != nil {
		return echo.ErrInternalServerError
	}
	if r.RowsAffected == 0 {
		r = db.Where("email = ?", email).Limit(1).Find(&user)
		if r.Error != nil {
			return echo.ErrInternalServerError
		}
	}

	created := r.RowsAffected == 0
	if created {
		user = models.UserAccount{Email: email, Status: "FINISHED_AUTH", ReceiveNotifications: true}
	}
	user.GoogleID = googleID
	user.Platform = models.ScanPlatform(req.Platform)
	user.LastIp = c.RealIP()
	if user.Name == "" {
		user.Name = name
	}
	if picture != "" {
		user.AvatarURL = picture
	}
	if err := db.Save(&user).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	m.Log.Info("google sign-in", "user_account_id", user.ID, "new", created)
	return m.signIn(c, &user, created)
}

func (m *AuthController) AppleSignIn(c echo.Context) error {
	var req models.AppleAuthRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if m.Apple == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Sign in with Apple is not available")
	}

	identity, err := m.Apple.VerifyAuthorizationCode(c.Request().Context(), req.AuthorizationCode)
	if err != nil {
		m.Log.Info("apple code rejected", "error", err)
		if !errors.Is(err, services.ErrAppleRejected) {
			sentry.CaptureException(err)
		}
		return errorJSON(c, http.StatusForbidden, "Couldn't verify credentials through Apple")
	}

	db := currentDB(c)
	var user models.UserAccount
	query := db.Where("apple_id = ?", identity.ID)
	if identity.Email != "" {
		query = db.Where("apple_id = ? OR email = ?", identity.ID, identity.Email)
	}
	r := query.Limit(1).Find(&user)
	if r.Error != nil {
		return echo.ErrInternalServerError
	}

	created := r.RowsAffected == 0
	if created {
		if identity.Email == "" {
			return errorJSON(c, http.StatusForbidden, "It seems that you are signing in the first time and no email was provided by Apple. Please try again.")
		}
		user = models.UserAccount{Email: identity.Email, Name: req.Name, Status: "FINISHED_AUTH", ReceiveNotifications: true}
		if user.Name == "" {
			user.Name = identity.Email
		}
	}
	user.AppleID = identity.ID
	user.Platform = models.ScanPlatform(req.Platform)
	user.LastIp = c.RealIP()
	if err := db.Save(&user).Error; err != nil {
		sentry.CaptureException(err)
		return echo.ErrInternalServerError
	}
	m.Log.Info("apple sign-in", "user_account_id", user.ID, "new", created)
	return m.signIn(c, &user, created)
}

func (m *AuthController) RefreshToken(c echo.Context) error {
	var req RefreshTokenIn
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	if err := c.Validate(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	token, err := jwt.Parse(req.RefreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret(), nil
	})
	if err != nil || !token.Valid {
		return errorJSON(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != "refresh" {
		return errorJSON(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	sub, _ := claims["sub"].(string)
	userId, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || userId < 1 {
		return errorJSON(c, http.StatusUnauthorized, "Invalid refresh token")
	}

	var user models.UserAccount
	result := currentDB(c).First(&user, userId)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return errorJSON(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	if result.Error != nil {
		return echo.ErrInternalServerError
	}
	if user.Banned {
		return echo.ErrUnauthorized
	}

	accessToken, err := GenerateUserToken(sub, m.secret())
	if err != nil {
		return echo.ErrInternalServerError
	}
	refreshToken, err := GenerateRefreshToken(sub, m.secret())
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

func (m *AuthController) Me(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	db := currentDB(c)

	session, err := loadSession(db, user.ID)
	if err != nil {
		return echo.ErrInternalServerError
	}
	used, err := todayAttemptCount(db, user.ID, time.Now())
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, models.UserMeInfoOut{
		Id:                   user.ID,
		Name:                 user.Name,
		Email:                user.Email,
		Platform:             user.Platform,
		AvatarURL:            user.AvatarURL,
		ReceiveNotifications: user.ReceiveNotifications,
		Gender:               session.Gender,
		DailyAttemptLimit:    dailyAttemptLimit(user, m.Config),
		TodayAttemptCount:    used,
	})
}

func (m *AuthController) Settings(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var settingsIn models.UserSettingsIn
	if err := c.Bind(&settingsIn); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	err := currentDB(c).Model(&models.UserAccount{}).Where("id = ?", user.ID).
		Update("receive_notifications", settingsIn.ReceiveNotifications).Error
	if err != nil {
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, settingsIn)
}

func (m *AuthController) RegisterPush(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var tokenRequest models.UserPushIn
	if err := c.Bind(&tokenRequest); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if tokenRequest.Token == "" || !models.ValidatePlatformRaw(tokenRequest.Platform) {
		return errorJSON(c, http.StatusBadRequest, "Please provide proper token and platform parameters")
	}

	pushData := models.UserPushToken{
		Platform:      models.ScanPlatform(tokenRequest.Platform),
		Token:         tokenRequest.Token,
		UserAccountID: user.ID,
		Active:        true,
	}
	// the same device can sign in to several accounts and keeps receiving pushes for each
	db := currentDB(c)
	result := db.Where("token = ? AND user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
	if result.Error != nil {
		m.Log.Error("failed to register push token", "user_account_id", user.ID, "error", result.Error)
		return echo.ErrInternalServerError
	}
	if !pushData.Active {
		db.Model(&pushData).Update("active", true)
	}
	m.Log.Debug("push token registered", "user_account_id", user.ID, "push_id", pushData.ID, "platform", pushData.Platform)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "registered",
		"push_id": pushData.ID,
	})
}

func (m *AuthController) DeletePush(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	var tokenRequest models.UserPushIn
	if err := c.Bind(&tokenRequest); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if !models.ValidatePlatformRaw(tokenRequest.Platform) {
		return errorJSON(c, http.StatusBadRequest, "Please provide proper platform parameter")
	}

	result := currentDB(c).
		Where("token = ? AND user_account_id = ? AND platform = ?", tokenRequest.Token, user.ID, tokenRequest.Platform).
		Delete(&models.UserPushToken{})
	if result.Error != nil {
		m.Log.Error("failed to delete push token", "user_account_id", user.ID, "error", result.Error)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "deleted",
		"deleted": result.RowsAffected > 0,
	})
}

func (m *AuthController) DeleteAccount(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	db := currentDB(c)
	now := time.Now()
	if err := db.Model(&models.UserAccount{}).Where("id = ?", user.ID).Update("confirmed_delete_date", now).Error; err != nil {
		return echo.ErrInternalServerError
	}
	db.Where("user_account_id = ?", user.ID).Delete(&models.UserPushToken{})
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
