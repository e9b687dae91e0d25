package model

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// paidAPITypes are the translation providers that need a user API key.
var paidAPITypes = []string{"deepseek", "zhipu", "openrouter", "kimi", "gpt"}

// IsPaidAPIType returns true if the translation provider requires an API key.
func IsPaidAPIType(apiType string) bool {
	return slices.Contains(paidAPITypes, strings.ToLower(apiType))
}

// TranslationJob is the request of a document translation sent to the server.
type TranslationJob struct {
	Mode        TranslationMode
	FilePath    string
	APIType     string
	APIKey      string
	SourceLang  string
	TargetLang  string
	Concurrency int
}

// Validate validates the translation job.
func (j *TranslationJob) Validate() error {
	switch j.Mode {
	case TranslationModeDocument, TranslationModeText:
	default:
		return fmt.Errorf("unknown translation mode %q: %w", j.Mode, ErrNotValid)
	}

	if j.FilePath == "" {
		return fmt.Errorf("file path is required: %w", ErrNotValid)
	}

	if !strings.EqualFold(filepath.Ext(j.FilePath), ".pdf") {
		return fmt.Errorf("only PDF files are supported: %w", ErrNotValid)
	}

	if j.APIType == "" {
		return fmt.Errorf("api type is required: %w", ErrNotValid)
	}

	if IsPaidAPIType(j.APIType) && j.APIKey == "" {
		return fmt.Errorf("api key is required for %q: %w", j.APIType, ErrNotValid)
	}

	if j.TargetLang == "" {
		return fmt.Errorf("target language is required: %w", ErrNotValid)
	}

	if j.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1: %w", ErrNotValid)
	}

	return nil
}
