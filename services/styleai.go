package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stylestudioapi/logger"
	"stylestudioapi/models"

	"google.golang.org/genai"
)

// LLMModelName names the Gemini model a call goes to.
type LLMModelName int32

const (
	Flash25 LLMModelName = iota
	Flash25Image
	Pro25
	FlashLite25
)

func (t LLMModelName) String() string {
	switch t {
	case Flash25:
		return "gemini-2.5-flash"
	case Flash25Image:
		return "gemini-2.5-flash-image"
	case Pro25:
		return "gemini-2.5-pro"
	case FlashLite25:
		return "gemini-2.5-flash-lite"
	default:
		return "gemini-2.5-flash"
	}
}

type LLMResponse struct {
	Images             [][]byte `json:"-"`
	ImageMIMEType      string   `json:"image_mime_type"`
	Text               string   `json:"text"`
	Model              string   `json:"model"`
	InputTokenCount    int32    `json:"input_token_count"`
	ThoughtsTokenCount int32    `json:"thoughts_token_count"`
	OutputTokenCount   int32    `json:"output_token_count"`
	TotalTokenCount    int32    `json:"total_token_count"`
}

// TryOnItem is a garment handed to generation together with its image bytes.
type TryOnItem struct {
	Name     string
	Category models.Category
	Image    models.ImageRef
}

type StyleAIProvider interface {
	ClassifyClothing(ctx context.Context, data []byte, mimeType string) (models.Category, error)
	GenerateTryOn(ctx context.Context, person models.ImageRef, items []TryOnItem, gender models.Gender) (*LLMResponse, error)
}

type GoogleStyleAI struct {
	client        *genai.Client
	ClassifyModel string
	TryOnModel    string
	log           *logger.Logger
}

func NewGoogleStyleAI(ctx context.Context, apiKey string, log *logger.Logger) (*GoogleStyleAI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GoogleStyleAI{
		client:        client,
		ClassifyModel: Flash25.String(),
		TryOnModel:    Flash25Image.String(),
		log:           log,
	}, nil
}

const classifyPrompt = `Look at the clothing item in this image and decide which category it belongs to. Answer with exactly one of these values: "outfits", "tops", "bottoms", "footwear", "headwear", "accessories". Use "outfits" for a single piece that dresses both the upper and the lower body, such as a dress, a jumpsuit or a suit.`

func classificationSchema() *genai.Schema {
	labels := make([]string, 0, len(models.Categories))
	for _, category := range models.Categories {
		labels = append(labels, string(category))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category": {
				Type:        genai.TypeString,
				Enum:        labels,
				Description: "The category of the clothing item.",
			},
		},
		Required: []string{"category"},
	}
}

func (s *GoogleStyleAI) ClassifyClothing(ctx context.Context, data []byte, mimeType string) (models.Category, error) {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
		{Text: classifyPrompt},
	}
	result, err := s.client.Models.GenerateContent(ctx, s.ClassifyModel, []*genai.Content{{Parts: parts, Role: "user"}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   classificationSchema(),
		CandidateCount:   1,
		Temperature:      floatPointer(0.2),
	})
	if err != nil {
		s.log.Warn("classification call failed", "model", s.ClassifyModel, "error", err)
		return "", ParseAIError(fmt.Errorf("classify clothing: %w", err))
	}
	if err := promptBlocked(result); err != nil {
		return "", ParseAIError(err)
	}

	category, err := parseCategoryResponse(result.Text())
	if err != nil {
		return "", ParseAIError(err)
	}
	return category, nil
}

func parseCategoryResponse(text string) (models.Category, error) {
	var payload struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return "", fmt.Errorf("invalid classification response: %w", err)
	}
	if payload.Category == "" {
		return "", ErrNoCategory
	}
	category, err := models.ParseCategory(payload.Category)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCategory, err)
	}
	return category, nil
}

// BuildTryOnPrompt describes the person and every garment in the order the
// garment images are attached.
func BuildTryOnPrompt(items []TryOnItem, gender models.Gender) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- A '%s' item named '%s'", item.Category, item.Name))
	}
	return fmt.Sprintf(`Perform a photorealistic virtual try-on. The first image shows the user, a %s. Every following image is a clothing item the user must be wearing in the result, in this order:
%s

Rules:
1. Fit each garment to this person's own body shape, posture and proportions, and place it on the matching body part ('tops' on the torso, 'footwear' on the feet and so on).
2. Drape the fabric naturally with gravity, tension and folds that suit the material, and light it to match the original photo.
3. Keep the exact aspect ratio and framing of the user photo. Background, face and everything not covered by the new garments stay unchanged.
4. Fully replace the clothing being worn in each target area with no trace of the old garment.
5. If a needed body part is out of frame, extend the photo realistically to show it, matching the person's build and skin tone.

The result must look like an unedited photograph of the user actually wearing these items.`, gender, strings.Join(lines, "\n"))
}

func tryOnParts(person models.ImageRef, items []TryOnItem, gender models.Gender) []*genai.Part {
	parts := make([]*genai.Part, 0, len(items)+2)
	parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: person.Data, MIMEType: person.MIMEType}})
	for _, item := range items {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: item.Image.Data, MIMEType: item.Image.MIMEType}})
	}
	parts = append(parts, &genai.Part{Text: BuildTryOnPrompt(items, gender)})
	return parts
}

func (s *GoogleStyleAI) GenerateTryOn(ctx context.Context, person models.ImageRef, items []TryOnItem, gender models.Gender) (*LLMResponse, error) {
	result, err := s.client.Models.GenerateContent(ctx, s.TryOnModel, []*genai.Content{{Parts: tryOnParts(person, items, gender), Role: "user"}}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		CandidateCount:     1,
	})
	if err != nil {
		s.log.Warn("try-on call failed", "model", s.TryOnModel, "items", len(items), "error", err)
		return nil, ParseAIError(fmt.Errorf("generate try-on: %w", err))
	}
	if err := promptBlocked(result); err != nil {
		return nil, ParseAIError(err)
	}

	response, err := responseFromResult(result)
	if err != nil {
		return nil, ParseAIError(err)
	}
	response.Model = s.TryOnModel
	s.log.Debug("try-on generated",
		"model", s.TryOnModel,
		"llm_input_token_count", response.InputTokenCount,
		"llm_output_token_count", response.OutputTokenCount,
		"llm_total_token_count", response.TotalTokenCount,
	)
	return response, nil
}

func promptBlocked(result *genai.GenerateContentResponse) error {
	if result == nil || result.PromptFeedback == nil || result.PromptFeedback.BlockReason == "" {
		return nil
	}
	return fmt.Errorf("request was blocked: %s %s", result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage)
}

func responseFromResult(result *genai.GenerateContentResponse) (*LLMResponse, error) {
	images, mimeType, err := GetAllInlineImages(result)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoImageReturned
	}
	response := &LLMResponse{Images: images, ImageMIMEType: mimeType}
	if usage := result.UsageMetadata; usage != nil {
		response.InputTokenCount = usage.PromptTokenCount
		response.ThoughtsTokenCount = usage.ThoughtsTokenCount
		response.OutputTokenCount = usage.CandidatesTokenCount
		response.TotalTokenCount = usage.TotalTokenCount
	}
	return response, nil
}

// GetAllInlineImages collects the inline images of every candidate and the
// MIME type of the first one.
func GetAllInlineImages(result *genai.GenerateContentResponse) ([][]byte, string, error) {
	if result == nil {
		return nil, "", fmt.Errorf("empty model response")
	}

	var images [][]byte
	var firstMIMEType string
	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating != nil && rating.Blocked {
				return nil, "", fmt.Errorf("request was blocked: content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "image/") || len(part.InlineData.Data) == 0 {
				continue
			}
			if firstMIMEType == "" {
				firstMIMEType = part.InlineData.MIMEType
			}
			images = append(images, part.InlineData.Data)
		}
	}
	return images, firstMIMEType, nil
}
