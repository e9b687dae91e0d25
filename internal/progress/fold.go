package progress

import (
	"github.com/slok/doctrans/internal/message"
	"github.com/slok/doctrans/internal/model"
)

// ApplyProgress folds a partial progress message into the previous snapshot.
//
// Only the fields present on the message are applied. Percentage, counters,
// tokens, cost and elapsed time never go backwards so late duplicates
// delivered by a reconnect can't rewind the view.
func ApplyProgress(prev model.Snapshot, m message.ProgressMessage) model.Snapshot {
	next := prev

	if m.Total != nil && *m.Total >= 0 {
		next.Total = *m.Total
	}
	if m.Current != nil {
		next.Current = max(prev.Current, *m.Current)
	}

	switch {
	case m.Percentage != nil:
		next.Percentage = max(prev.Percentage, clampPercentage(*m.Percentage))
	case m.Current != nil && next.Total > 0:
		pct := float64(*m.Current) / float64(next.Total) * 100
		next.Percentage = max(prev.Percentage, clampPercentage(pct))
	}

	if m.Message != nil && *m.Message != "" {
		next.StatusMessage = *m.Message
	}
	if m.ElapsedTime != nil && *m.ElapsedTime >= 0 {
		next.ElapsedSeconds = max(prev.ElapsedSeconds, *m.ElapsedTime)
	}
	if m.EstimatedRemaining != nil {
		next.EstimatedRemainingSeconds = remaining(*m.EstimatedRemaining)
	}
	if m.InputTokens != nil {
		next.InputTokens = max(prev.InputTokens, *m.InputTokens)
	}
	if m.OutputTokens != nil {
		next.OutputTokens = max(prev.OutputTokens, *m.OutputTokens)
	}
	if m.EstimatedCost != nil {
		next.EstimatedCost = max(prev.EstimatedCost, *m.EstimatedCost, 0)
	}

	return next
}

// ApplyCompleted folds the completion message, forcing the percentage to 100.
func ApplyCompleted(prev model.Snapshot, m message.CompletedMessage) model.Snapshot {
	next := prev
	next.Percentage = 100
	next.StatusMessage = "translation completed"
	if next.Total > 0 {
		next.Current = next.Total
	}
	done := 0.0
	next.EstimatedRemainingSeconds = &done

	if m.InputTokens != nil {
		next.InputTokens = max(prev.InputTokens, *m.InputTokens)
	}
	if m.OutputTokens != nil {
		next.OutputTokens = max(prev.OutputTokens, *m.OutputTokens)
	}
	if m.EstimatedCost != nil {
		next.EstimatedCost = max(prev.EstimatedCost, *m.EstimatedCost, 0)
	}

	return next
}

// ApplyPair applies a pair event to the active pair and returns the new active
// pair and if it changed.
//
// A source event always opens a new pending pair. A target event only resolves
// the active pair when ordinals match, any other target is ignored here and
// only lives in the plain log.
func ApplyPair(active *model.TranslationPair, ev model.PairEvent) (*model.TranslationPair, bool) {
	switch ev.Role {
	case model.PairRoleSource:
		return &model.TranslationPair{
			Ordinal: ev.Ordinal,
			Total:   ev.Total,
			Source:  ev.Text,
		}, true
	case model.PairRoleTarget:
		if active == nil || active.Resolved || active.Ordinal != ev.Ordinal {
			return active, false
		}
		next := *active
		next.Target = ev.Text
		next.Resolved = true
		if ev.TimingSeconds != nil {
			next.TimingSeconds = *ev.TimingSeconds
		}
		if ev.Total > next.Total {
			next.Total = ev.Total
		}
		return &next, true
	}

	return active, false
}

func clampPercentage(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

func remaining(secs float64) *float64 {
	if secs <= 0 {
		return nil
	}
	return &secs
}
