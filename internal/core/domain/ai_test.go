package domain

import "testing"

func TestAIProviderIsValid(t *testing.T) {
	tests := []struct {
		provider AIProvider
		valid    bool
	}{
		{AIProviderOpenAI, true},
		{AIProviderAnthropic, true},
		{AIProviderGemini, true},
		{AIProviderOllama, true},
		{AIProviderPlaceholder, true},
		{AIProvider("cohere"), false},
		{AIProvider(""), false},
	}

	for _, tt := range tests {
		if got := tt.provider.IsValid(); got != tt.valid {
			t.Errorf("IsValid(%q) = %v, want %v", tt.provider, got, tt.valid)
		}
	}
}

func TestAIProviderRequiresAPIKey(t *testing.T) {
	if AIProviderOllama.RequiresAPIKey() {
		t.Error("ollama is self-hosted, no key required")
	}
	if AIProviderPlaceholder.RequiresAPIKey() {
		t.Error("placeholder needs no key")
	}
	if !AIProviderGemini.RequiresAPIKey() {
		t.Error("gemini requires a key")
	}
}

func TestEmbeddingSettingsIsConfigured(t *testing.T) {
	s := EmbeddingSettings{}
	if s.IsConfigured() {
		t.Error("empty settings must not be configured")
	}

	s = EmbeddingSettings{Provider: AIProviderOpenAI}
	if s.IsConfigured() {
		t.Error("openai without key must not be configured")
	}

	s.APIKey = "sk-test"
	if !s.IsConfigured() {
		t.Error("openai with key must be configured")
	}

	s = EmbeddingSettings{Provider: AIProviderOllama}
	if !s.IsConfigured() {
		t.Error("ollama without key must be configured")
	}
}

func TestValidateAISettings(t *testing.T) {
	err := ValidateAISettings(
		EmbeddingSettings{Provider: AIProviderOllama},
		LLMSettings{Provider: AIProviderGemini},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ValidateAISettings(
		EmbeddingSettings{Provider: AIProvider("voyage")},
		LLMSettings{},
	)
	if err != ErrInvalidProvider {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
