package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"stylestudioapi/models"
	"stylestudioapi/services"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hibiken/asynq"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

// PNG is the smallest byte sequence sniffed as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	req := NewJSONRequest(method, target, param)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userPk)))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userPk)))
	return req
}

// UploadFile is one part of a multipart request.
type UploadFile struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

func NewMultipartAuthRequest(method string, target string, userPk string, files []UploadFile) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, file := range files {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="%s"; filename="%s"`, file.Field, file.Name)}
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header["Content-Type"] = []string{contentType}
		part, err := writer.CreatePart(header)
		if err != nil {
			log.Fatal(err)
		}
		part.Write(file.Data)
	}
	writer.Close()

	req := httptest.NewRequest(method, target, body)
	req.Header.Add("Content-Type", writer.FormDataContentType())
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", GenerateUserToken(userPk)))
	return req
}

func FakeUser(db *gorm.DB, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:                 "OurName",
		Email:                email,
		GoogleID:             "12232",
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		Status:               "FINISHED_AUTH",
		AvatarURL:            "pictureurl",
		ReceiveNotifications: true,
	}
	db.Create(user)
	db.Create(&models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      models.PlatformAndroid,
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XG",
		Active:        true,
	})
	return user
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {
	if idToken == "invalid" {
		return nil, fmt.Errorf("idtoken: invalid token")
	}
	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "123googleid", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"name":    "Fake Person",
		"picture": "pictureurl",
		"sub":     "123googleid",
	}}, nil
}

// AWSProviderMock keeps uploaded objects in memory.
type AWSProviderMock struct {
	MockUrl       string
	FailUploads   bool
	FailDownloads bool

	mu      sync.Mutex
	Objects map[string][]byte
}

func NewAWSProviderMock() *AWSProviderMock {
	return &AWSProviderMock{MockUrl: "https://fakebucketurl.com/read", Objects: map[string][]byte{}}
}

func (awsService *AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService *AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService *AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return fmt.Sprintf("%s/%s", awsService.MockUrl, fileKey), nil
}

func (awsService *AWSProviderMock) UploadObject(ctx context.Context, bucketName, key string, data []byte, mimeType string) error {
	if awsService.FailUploads {
		return fmt.Errorf("upload %s: connection refused", key)
	}
	awsService.mu.Lock()
	defer awsService.mu.Unlock()
	awsService.Objects[key] = append([]byte{}, data...)
	return nil
}

func (awsService *AWSProviderMock) DownloadObject(ctx context.Context, bucketName, key string) ([]byte, error) {
	if awsService.FailDownloads {
		return nil, fmt.Errorf("download %s: connection refused", key)
	}
	awsService.mu.Lock()
	defer awsService.mu.Unlock()
	data, ok := awsService.Objects[key]
	if !ok {
		return nil, fmt.Errorf("download %s: NoSuchKey", key)
	}
	return data, nil
}

func (awsService *AWSProviderMock) Keys() []string {
	awsService.mu.Lock()
	defer awsService.mu.Unlock()
	keys := make([]string, 0, len(awsService.Objects))
	for key := range awsService.Objects {
		keys = append(keys, key)
	}
	return keys
}

type URLCacheMock struct{}

func (URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return "https://cdn.example.com/" + objectKey, nil
}

// StyleAIMock answers from the hooks when set and records every call.
type StyleAIMock struct {
	Classify func(data []byte, mimeType string) (models.Category, error)
	TryOn    func(call int, items []services.TryOnItem) (*services.LLMResponse, error)

	mu            sync.Mutex
	ClassifyCalls int
	TryOnCalls    [][]services.TryOnItem
}

func (m *StyleAIMock) ClassifyClothing(ctx context.Context, data []byte, mimeType string) (models.Category, error) {
	m.mu.Lock()
	m.ClassifyCalls++
	m.mu.Unlock()
	if m.Classify != nil {
		return m.Classify(data, mimeType)
	}
	return models.CategoryTops, nil
}

func (m *StyleAIMock) GenerateTryOn(ctx context.Context, person models.ImageRef, items []services.TryOnItem, gender models.Gender) (*services.LLMResponse, error) {
	m.mu.Lock()
	call := len(m.TryOnCalls)
	m.TryOnCalls = append(m.TryOnCalls, items)
	m.mu.Unlock()
	if m.TryOn != nil {
		return m.TryOn(call, items)
	}
	return &services.LLMResponse{
		Images:           [][]byte{PNG},
		ImageMIMEType:    "image/png",
		Model:            services.Flash25Image.String(),
		InputTokenCount:  10,
		OutputTokenCount: 13,
		TotalTokenCount:  23,
	}, nil
}

type EnqueuerMock struct {
	Fail  bool
	Tasks []*asynq.Task
}

func (m *EnqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.Fail {
		return nil, fmt.Errorf("redis: connection refused")
	}
	m.Tasks = append(m.Tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(m.Tasks)), Type: task.Type(), Queue: "generate"}, nil
}

type CancellerMock struct {
	Cancelled []string
}

func (m *CancellerMock) CancelProcessing(id string) error {
	m.Cancelled = append(m.Cancelled, id)
	return nil
}

type Notification struct {
	UserID uint
	Title  string
	Data   map[string]string
}

type NotifierMock struct {
	mu   sync.Mutex
	Sent []Notification
}

func (m *NotifierMock) SendNotification(ctx context.Context, userID uint, title string, message string, customData map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Notification{UserID: userID, Title: title, Data: customData})
	return nil
}
