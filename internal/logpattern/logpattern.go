// Package logpattern finds the structured translation pair announcements
// embedded in the free text log lines of a translation task.
//
// Matching is best-effort: a line that doesn't match is a plain log line,
// never an error.
package logpattern

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/slok/doctrans/internal/model"
)

var (
	// [SOURCE 3/10] Hello
	// [原文 3/10] Hello
	sourceRegexp = regexp.MustCompile(`^\s*\[(?:SOURCE|原文)\s+(\d+)\s*/\s*(\d+)\s*\]\s*(\S.*?)\s*$`)
	// [TARGET 3/10] Bonjour (time: 1.2s)
	// [译文 3/10] Bonjour (耗时: 1.2s)
	targetRegexp = regexp.MustCompile(`^\s*\[(?:TARGET|译文)\s+(\d+)\s*/\s*(\d+)\s*\]\s*(\S.*?)\s*\((?:time|耗时)\s*[:：]\s*([0-9]*\.?[0-9]+)\s*s\s*\)\s*$`)
)

// Extract returns the pair event announced by a log line, if any.
func Extract(text string) (model.PairEvent, bool) {
	// Segments are truncated by the server but may span lines.
	text = strings.ReplaceAll(text, "\n", " ")

	if m := targetRegexp.FindStringSubmatch(text); m != nil {
		ordinal, total, ok := counters(m[1], m[2])
		if !ok {
			return model.PairEvent{}, false
		}
		timing, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return model.PairEvent{}, false
		}
		return model.PairEvent{
			Ordinal:       ordinal,
			Total:         total,
			Role:          model.PairRoleTarget,
			Text:          strings.TrimSpace(m[3]),
			TimingSeconds: &timing,
		}, true
	}

	if m := sourceRegexp.FindStringSubmatch(text); m != nil {
		ordinal, total, ok := counters(m[1], m[2])
		if !ok {
			return model.PairEvent{}, false
		}
		return model.PairEvent{
			Ordinal: ordinal,
			Total:   total,
			Role:    model.PairRoleSource,
			Text:    strings.TrimSpace(m[3]),
		}, true
	}

	return model.PairEvent{}, false
}

func counters(rawOrdinal, rawTotal string) (ordinal, total int, ok bool) {
	ordinal, err := strconv.Atoi(rawOrdinal)
	if err != nil || ordinal < 1 {
		return 0, 0, false
	}
	total, err = strconv.Atoi(rawTotal)
	if err != nil {
		return 0, 0, false
	}
	return ordinal, total, true
}
