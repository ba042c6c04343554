package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"stylestudioapi/models"
	"stylestudioapi/services"
	"stylestudioapi/test"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAuthGoogle(t *testing.T) {
	f := newAPIFixture(t)

	param := models.GoogleAuthSignIn{IdToken: "valid", Platform: "ios"}
	rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/google", param))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SignInOut
	decode(t, rec, &resp)
	assert.Equal(t, "fake@example.com", resp.Email)
	assert.Equal(t, "Fake Person", resp.Name)
	assert.True(t, resp.New)
	assert.Equal(t, "pictureurl", resp.Avatar)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	var user models.UserAccount
	require.NoError(t, f.db.First(&user, "email = ?", "fake@example.com").Error)
	assert.Equal(t, "FINISHED_AUTH", user.Status)
	assert.Equal(t, "123googleid", user.GoogleID)
	assert.Equal(t, models.PlatformIOS, user.Platform)

	rec = f.serve(test.NewJSONRequest(http.MethodPost, "/auth/google", models.GoogleAuthSignIn{IdToken: "valid", Platform: "android"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var again models.SignInOut
	decode(t, rec, &again)
	assert.False(t, again.New)
	assert.Equal(t, resp.Id, again.Id)

	var count int64
	f.db.Model(&models.UserAccount{}).Where("email = ?", "fake@example.com").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestAuthGoogleLinksExistingEmail(t *testing.T) {
	f := newAPIFixture(t)
	existing := test.FakeUser(f.db, "fake@example.com")

	rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/google", models.GoogleAuthSignIn{IdToken: "valid", Platform: "web"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SignInOut
	decode(t, rec, &resp)
	assert.False(t, resp.New)
	assert.Equal(t, existing.ID, resp.Id)
	assert.Equal(t, "OurName", resp.Name)

	var user models.UserAccount
	require.NoError(t, f.db.First(&user, existing.ID).Error)
	assert.Equal(t, "123googleid", user.GoogleID)
	assert.Equal(t, models.PlatformWeb, user.Platform)
}

func TestAuthGoogleRejected(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/google", models.GoogleAuthSignIn{IdToken: "invalid", Platform: "ios"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.serve(test.NewJSONRequest(http.MethodPost, "/auth/google", models.GoogleAuthSignIn{IdToken: "valid", Platform: "symbian"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthApple(t *testing.T) {
	f := newAPIFixture(t, func(deps *Dependencies) {
		deps.Apple = appleMock{identity: &services.AppleIdentity{ID: "001122.apple", Email: "ann@privaterelay.appleid.com"}}
	})

	param := models.AppleAuthRequest{AuthorizationCode: "code", Platform: "ios", Name: "Ann"}
	rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/apple", param))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.SignInOut
	decode(t, rec, &resp)
	assert.True(t, resp.New)
	assert.Equal(t, "Ann", resp.Name)

	var user models.UserAccount
	require.NoError(t, f.db.First(&user, resp.Id).Error)
	assert.Equal(t, "001122.apple", user.AppleID)
	assert.Equal(t, "ann@privaterelay.appleid.com", user.Email)

	rec = f.serve(test.NewJSONRequest(http.MethodPost, "/auth/apple", param))
	require.Equal(t, http.StatusOK, rec.Code)
	var again models.SignInOut
	decode(t, rec, &again)
	assert.False(t, again.New)
	assert.Equal(t, resp.Id, again.Id)
}

func TestAuthAppleFailures(t *testing.T) {
	param := models.AppleAuthRequest{AuthorizationCode: "code", Platform: "ios"}

	t.Run("rejected code", func(t *testing.T) {
		f := newAPIFixture(t, func(deps *Dependencies) {
			deps.Apple = appleMock{err: fmt.Errorf("%w: invalid_grant", services.ErrAppleRejected)}
		})
		rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/apple", param))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("first sign in without email", func(t *testing.T) {
		f := newAPIFixture(t, func(deps *Dependencies) {
			deps.Apple = appleMock{identity: &services.AppleIdentity{ID: "no-email"}}
		})
		rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/apple", param))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, errorOf(t, rec), "no email was provided by Apple")
	})

	t.Run("not configured", func(t *testing.T) {
		f := newAPIFixture(t)
		rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/apple", param))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRefreshToken(t *testing.T) {
	f := newAPIFixture(t)

	refreshToken, err := GenerateRefreshToken(f.pk(), []byte(testJWTSecret))
	require.NoError(t, err)
	rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/refresh-token", echo.Map{"refresh_token": refreshToken}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp map[string]string
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])

	rec = f.serve(test.NewJSONRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenRejectsAccessTokens(t *testing.T) {
	f := newAPIFixture(t)

	accessToken, err := GenerateUserToken(f.pk(), []byte(testJWTSecret))
	require.NoError(t, err)
	rec := f.serve(test.NewJSONRequest(http.MethodPost, "/auth/refresh-token", echo.Map{"refresh_token": accessToken}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	foreign, err := GenerateRefreshToken(f.pk(), []byte("another-secret"))
	require.NoError(t, err)
	rec = f.serve(test.NewJSONRequest(http.MethodPost, "/auth/refresh-token", echo.Map{"refresh_token": foreign}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	f := newAPIFixture(t)
	photo := models.PersonPhoto{UserAccountID: f.user.ID, ObjectKey: "photos/me.png", MIMEType: "image/png"}
	require.NoError(t, f.db.Create(&photo).Error)
	require.NoError(t, f.db.Create(&models.TryOnBatch{
		UserAccountID: f.user.ID,
		Gender:        models.GenderFemale,
		PersonPhotoID: photo.ID,
		Attempts:      datatypes.NewJSONType([]models.PlannedAttempt{}),
		AttemptCount:  3,
		Status:        models.BatchCompleted,
	}).Error)

	rec := f.authJSON(http.MethodGet, "/auth/me", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me models.UserMeInfoOut
	decode(t, rec, &me)
	assert.Equal(t, f.user.ID, me.Id)
	assert.Equal(t, models.GenderFemale, me.Gender)
	assert.EqualValues(t, 30, me.DailyAttemptLimit)
	assert.EqualValues(t, 3, me.TodayAttemptCount)

	require.NoError(t, f.db.Model(f.user).Update("daily_attempt_limit", 5).Error)
	rec = f.authJSON(http.MethodGet, "/auth/me", nil)
	decode(t, rec, &me)
	assert.EqualValues(t, 5, me.DailyAttemptLimit)
}

func TestSettings(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.authJSON(http.MethodPost, "/auth/settings", models.UserSettingsIn{ReceiveNotifications: false})

	require.Equal(t, http.StatusOK, rec.Code)
	var user models.UserAccount
	require.NoError(t, f.db.First(&user, f.user.ID).Error)
	assert.False(t, user.ReceiveNotifications)
}

func TestRegisterAndDeletePush(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.authJSON(http.MethodPost, "/auth/register-push", models.UserPushIn{Token: "device-token", Platform: "ios"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.authJSON(http.MethodPost, "/auth/register-push", models.UserPushIn{Token: "device-token", Platform: "ios"})
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	f.db.Model(&models.UserPushToken{}).Where("user_account_id = ? AND token = ?", f.user.ID, "device-token").Count(&count)
	assert.EqualValues(t, 1, count)

	rec = f.authJSON(http.MethodPost, "/auth/register-push", models.UserPushIn{Token: "", Platform: "ios"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.authJSON(http.MethodPost, "/auth/delete-push", models.UserPushIn{Token: "device-token", Platform: "ios"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"deleted","deleted":true}`, rec.Body.String())
	f.db.Model(&models.UserPushToken{}).Where("user_account_id = ? AND token = ?", f.user.ID, "device-token").Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestDeleteAccount(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.authJSON(http.MethodPost, "/auth/delete-account", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.UserAccount
	require.NoError(t, f.db.First(&user, f.user.ID).Error)
	require.NotNil(t, user.ConfirmedDeleteDate)
	assert.WithinDuration(t, time.Now(), *user.ConfirmedDeleteDate, time.Minute)

	var tokens int64
	f.db.Model(&models.UserPushToken{}).Where("user_account_id = ?", f.user.ID).Count(&tokens)
	assert.EqualValues(t, 0, tokens)

	rec = f.authJSON(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusLocked, rec.Code)
}
