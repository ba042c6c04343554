package services

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	MessageAIMisconfigured = "The AI service is not configured correctly. Please contact support."
	MessageAIQuota         = "The AI service is currently experiencing high demand. Please try again in a few minutes."
	MessageAIUnavailable   = "The AI styling service is temporarily unavailable. Please try again later."
	MessageAIBlocked       = "The request was blocked by the AI. This can happen if an image is unsuitable for processing. Please try a different photo."
	MessageAIUnexpected    = "An unexpected error occurred with the AI service. Please try again."
)

var (
	ErrNoImageReturned = errors.New("The AI model did not return an image. This can happen if the input is unclear or violates safety policies. Please try a different photo.")
	ErrNoCategory      = errors.New("AI could not determine a valid category.")
)

// AIError is a model failure reduced to a message that can be shown to the
// user. Cause keeps the provider error for logs and sentry.
type AIError struct {
	Message string
	Cause   error
}

func (e *AIError) Error() string {
	return e.Message
}

func (e *AIError) Unwrap() error {
	return e.Cause
}

// ParseAIError maps a provider error onto the user-facing message set.
// Errors that already carry a user-facing message keep it.
func ParseAIError(err error) *AIError {
	if err == nil {
		return nil
	}
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr
	}
	if errors.Is(err, ErrNoImageReturned) || errors.Is(err, ErrNoCategory) {
		return &AIError{Message: rootMessage(err), Cause: err}
	}

	message := strings.ToLower(err.Error())

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AIError{Message: MessageAIMisconfigured, Cause: err}
		case http.StatusTooManyRequests:
			return &AIError{Message: MessageAIQuota, Cause: err}
		case http.StatusServiceUnavailable:
			return &AIError{Message: MessageAIUnavailable, Cause: err}
		case http.StatusBadRequest:
			// an invalid key is reported as a bad request too
			if strings.Contains(message, "api key not valid") {
				return &AIError{Message: MessageAIMisconfigured, Cause: err}
			}
			return &AIError{Message: MessageAIBlocked, Cause: err}
		}
	}

	switch {
	case strings.Contains(message, "api key not valid"):
		return &AIError{Message: MessageAIMisconfigured, Cause: err}
	case strings.Contains(message, "quota"):
		return &AIError{Message: MessageAIQuota, Cause: err}
	case strings.Contains(message, "503") || strings.Contains(message, "unavailable"):
		return &AIError{Message: MessageAIUnavailable, Cause: err}
	case strings.Contains(message, "invalid argument") || strings.Contains(message, "request was blocked"):
		return &AIError{Message: MessageAIBlocked, Cause: err}
	}
	return &AIError{Message: MessageAIUnexpected, Cause: err}
}

// UserMessage is the text to store on a failed batch or upload.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return ParseAIError(err).Message
}

func rootMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoImageReturned):
		return ErrNoImageReturned.Error()
	case errors.Is(err, ErrNoCategory):
		return ErrNoCategory.Error()
	}
	return err.Error()
}
