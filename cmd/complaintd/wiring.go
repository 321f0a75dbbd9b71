package main

import (
	"context"
	"fmt"

	"github.com/joelkehle/hmrc-complaints/internal/classify"
	"github.com/joelkehle/hmrc-complaints/internal/config"
	"github.com/joelkehle/hmrc-complaints/internal/knowledge"
	"github.com/joelkehle/hmrc-complaints/internal/layout"
	"github.com/joelkehle/hmrc-complaints/internal/llm"
)

func newClassifier(cfg config.Config) (*classify.Engine, error) {
	table := classify.DefaultWeights()
	if cfg.Classify.WeightsFile != "" {
		t, err := classify.LoadWeightsFile(cfg.Classify.WeightsFile)
		if err != nil {
			return nil, err
		}
		table = t
	}
	return classify.New(table)
}

func newAnthropic(cfg config.Config) (*llm.AnthropicCaller, error) {
	return llm.NewAnthropicCaller(llm.AnthropicConfig{
		APIKey:      cfg.Anthropic.APIKey,
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	})
}

func newEmbedder(ctx context.Context, cfg config.Config) (*knowledge.GeminiEmbedder, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	return knowledge.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel, cfg.Gemini.Dimensions)
}

func layoutDefaults(cfg config.Config) layout.Options {
	return layout.Options{
		EnableImages:     cfg.Layout.EnableImages,
		MaxImageSections: cfg.Layout.MaxImageSections,
		ImageConcurrency: cfg.Layout.ImageConcurrency,
	}
}

func knowledgeConfig(cfg config.Config) knowledge.Config {
	return knowledge.Config{
		Threshold: cfg.Knowledge.Threshold,
		Limit:     cfg.Knowledge.Limit,
		TopK:      cfg.Knowledge.TopK,
	}
}
