package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"google.golang.org/api/option"
)

const geminiService = "gemini"

// TextGenerator produces text for a single prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiClient generates chat replies with a Gemini model
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiClient configures a Gemini client for the given model.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  client.GenerativeModel(modelName),
		name:   modelName,
	}, nil
}

// GenerateText sends prompt as a single user turn and joins the text parts of the first candidate.
func (g *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &models.ServiceError{Kind: models.ErrKindMalformed, Service: geminiService, Message: "no content generated"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// GetChatbotResponse asks gen for a reply to userMessage. It never fails: service
// errors are returned inside the reply so the caller can still render something.
func GetChatbotResponse(ctx context.Context, gen TextGenerator, userMessage string) (reply models.ChatReply) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			RecordRemoteCall(geminiService, string(models.ErrKindUnknown), time.Since(start).Seconds())
			reply = models.ChatReply{Err: &models.ServiceError{
				Kind:    models.ErrKindUnknown,
				Service: geminiService,
				Message: fmt.Sprintf("panic: %v", r),
			}}
		}
	}()

	text, err := gen.GenerateText(ctx, userMessage)
	if err == nil && strings.TrimSpace(text) == "" {
		err = &models.ServiceError{Kind: models.ErrKindMalformed, Service: geminiService, Message: "empty response"}
	}
	if err != nil {
		serviceErr := ClassifyError(geminiService, err)
		RecordRemoteCall(geminiService, string(serviceErr.Kind), time.Since(start).Seconds())
		return models.ChatReply{Err: serviceErr}
	}

	RecordRemoteCall(geminiService, "ok", time.Since(start).Seconds())
	return models.ChatReply{Text: text}
}
