package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		input int64
		exp   string
	}{
		"zero bytes":                         {input: 0, exp: "0 B"},
		"negative bytes should return zero":  {input: -100, exp: "0 B"},
		"small bytes":                        {input: 512, exp: "512 B"},
		"kilobytes":                          {input: 1536, exp: "1.5 KB"},
		"hundreds of megabytes":              {input: 700 * 1024 * 1024, exp: "700.0 MB"},
		"one terabyte":                       {input: 1024 * 1024 * 1024 * 1024, exp: "1.0 TB"},
		"beyond terabytes should stay in TB": {input: 2048 * 1024 * 1024 * 1024 * 1024, exp: "2048.0 TB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatBytes(test.input))
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[string]struct {
		input int64
		exp   string
	}{
		"zero":               {input: 0, exp: "0"},
		"three digits":       {input: 999, exp: "999"},
		"thousands":          {input: 12345, exp: "12,345"},
		"millions":           {input: 1234567, exp: "1,234,567"},
		"negative thousands": {input: -1000, exp: "-1,000"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatCount(test.input))
		})
	}
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.0123", FormatCost(0.01234))
	assert.Equal(t, "$0.0000", FormatCost(0))
}
