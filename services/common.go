package services

import (
	"context"
	"fmt"

	"stylestudioapi/logger"
	"stylestudioapi/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/getsentry/sentry-go"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

type GoogleServiceProvider interface {
	ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

type GoogleService struct {
}

func (gs GoogleService) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {
	return idtoken.Validate(ctx, idToken, audience)
}

type NotificationSender interface {
	SendNotification(ctx context.Context, userID uint, title string, message string, customData map[string]string) error
}

// FirebaseNotifier pushes through FCM to every active token of the user.
type FirebaseNotifier struct {
	App *firebase.App
	DB  *gorm.DB
	log *logger.Logger
}

func NewFirebaseNotifier(app *firebase.App, db *gorm.DB, log *logger.Logger) *FirebaseNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &FirebaseNotifier{App: app, DB: db, log: log}
}

func stringMapToInterfaceMap(stringMap map[string]string) map[string]interface{} {
	interfaceMap := make(map[string]interface{}, len(stringMap))
	for key, value := range stringMap {
		interfaceMap[key] = value
	}
	return interfaceMap
}

func BuildPushMessage(token models.UserPushToken, title string, message string, customData map[string]string) *messaging.Message {
	var iosCustomData map[string]interface{}
	if customData != nil {
		iosCustomData = stringMapToInterfaceMap(customData)
	}
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		APNS: &messaging.APNSConfig{
			FCMOptions: &messaging.APNSFCMOptions{
				AnalyticsLabel: "stylestudio",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  message,
					},
					Sound: "default",
				},
				CustomData: iosCustomData,
			},
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Priority:  messaging.AndroidNotificationPriority(messaging.PriorityMax),
				ChannelID: "stylestudio-high-priority",
			},
			Data: customData,
		},
		Data:  customData,
		Token: token.Token,
	}
}

func (n *FirebaseNotifier) SendNotification(ctx context.Context, userID uint, title string, message string, customData map[string]string) error {
	var user models.UserAccount
	if err := n.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if !user.ReceiveNotifications {
		return nil
	}

	var tokens []models.UserPushToken
	err := n.DB.WithContext(ctx).Model(models.UserPushToken{}).
		Where("user_account_id = ? and active = ?", userID, true).
		Find(&tokens).Error
	if err != nil {
		return fmt.Errorf("failed to load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	client, err := n.App.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("failed to init messaging client: %w", err)
	}

	messages := make([]*messaging.Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, BuildPushMessage(token, title, message, customData))
	}
	br, err := client.SendEach(ctx, messages)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}

	for i, resp := range br.Responses {
		if resp == nil || resp.Success {
			continue
		}
		if messaging.IsUnregistered(resp.Error) {
			n.DB.WithContext(ctx).Model(&tokens[i]).Update("active", false)
			continue
		}
		n.log.Warn("push failed", "user_account_id", userID, "push_id", tokens[i].ID, "error", resp.Error)
		sentry.CaptureException(fmt.Errorf("[User: %v] push to token %d failed: %w", userID, tokens[i].ID, resp.Error))
	}
	n.log.Info("push sent", "user_account_id", userID, "success", br.SuccessCount, "failure", br.FailureCount)
	return nil
}
