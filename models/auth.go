package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type AppleAuthRequest struct {
	IdentityToken     string `json:"identity_token"`
	Platform          string `json:"platform" validate:"required,platform"`
	AuthorizationCode string `json:"authorization_code" validate:"required"`
	Name              string `json:"name" validate:"omitempty,max=100"`
}

type SignInOut struct {
	Id           uint   `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	New          bool   `json:"new"`
	Avatar       string `json:"avatar"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type UserMeInfoOut struct {
	Id                   uint     `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Platform             Platform `json:"platform"`
	AvatarURL            string   `json:"avatar_url"`
	ReceiveNotifications bool     `json:"receive_notifications"`
	Gender               Gender   `json:"gender"`
	DailyAttemptLimit    int32    `json:"daily_attempt_limit"`
	TodayAttemptCount    int64    `json:"today_attempt_count"`
}
