package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type OpenAIImagesAPI interface {
	Generate(ctx context.Context, body openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

type OpenAIImageGenerator struct {
	api   OpenAIImagesAPI
	model openai.ImageModel
}

func NewOpenAIImageGenerator(apiKey, model string) (*OpenAIImageGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIImageGeneratorWithAPI(&c.Images, model), nil
}

func NewOpenAIImageGeneratorWithAPI(api OpenAIImagesAPI, model string) *OpenAIImageGenerator {
	m := openai.ImageModel(strings.TrimSpace(model))
	if m == "" {
		m = openai.ImageModelDallE3
	}
	return &OpenAIImageGenerator{api: api, model: m}
}

func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := g.api.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          g.model,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("generate image: empty response")
	}
	return resp.Data[0].URL, nil
}
