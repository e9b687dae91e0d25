package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/doctrans/internal/model"
)

func TestTranslationJobValidate(t *testing.T) {
	validJob := func() model.TranslationJob {
		return model.TranslationJob{
			Mode:        model.TranslationModeDocument,
			FilePath:    "/tmp/paper.pdf",
			APIType:     "google",
			SourceLang:  "auto",
			TargetLang:  "zh",
			Concurrency: 4,
		}
	}

	tests := map[string]struct {
		job    func() model.TranslationJob
		expErr bool
	}{
		"A valid job should not fail.": {
			job: validJob,
		},

		"A text mode job should not fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.Mode = model.TranslationModeText
				return j
			},
		},

		"An upper case PDF extension should not fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.FilePath = "/tmp/PAPER.PDF"
				return j
			},
		},

		"A paid API with key should not fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.APIType = "deepseek"
				j.APIKey = "sk-123"
				return j
			},
		},

		"A paid API without key should fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.APIType = "openrouter"
				return j
			},
			expErr: true,
		},

		"A non PDF file should fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.FilePath = "/tmp/paper.docx"
				return j
			},
			expErr: true,
		},

		"Missing file should fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.FilePath = ""
				return j
			},
			expErr: true,
		},

		"Unknown mode should fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.Mode = "audio"
				return j
			},
			expErr: true,
		},

		"Missing target language should fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.TargetLang = ""
				return j
			},
			expErr: true,
		},

		"Zero concurrency should fail.": {
			job: func() model.TranslationJob {
				j := validJob()
				j.Concurrency = 0
				return j
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			job := test.job()
			err := job.Validate()

			if test.expErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerError(t *testing.T) {
	var err error = &model.ServerError{StatusCode: 400, Message: "no file"}

	assert.True(t, errors.Is(err, model.ErrServer))
	assert.Equal(t, "server answered with status 400: no file", err.Error())

	var serr *model.ServerError
	assert.True(t, errors.As(err, &serr))
	assert.Equal(t, "no file", serr.Message)
}

func TestIsPaidAPIType(t *testing.T) {
	assert.True(t, model.IsPaidAPIType("kimi"))
	assert.True(t, model.IsPaidAPIType("GPT"))
	assert.False(t, model.IsPaidAPIType("google"))
}
