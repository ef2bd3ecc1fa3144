package flashcard

import (
	"sort"

	"github.com/vytor/bunpo/internal/models"
)

const (
	// MaxMissesWhileLearned is the number of cumulative misses a learned
	// entry tolerates before it is sent back to review.
	MaxMissesWhileLearned = 3
	// WeakMinAttempts is the attempt count above which accuracy is judged.
	WeakMinAttempts = 5
	// WeakAccuracy is the accuracy at or below which an entry is weak.
	WeakAccuracy = 0.8
)

// Outcome is the result of applying one answer.
type Outcome struct {
	Stat    models.Stat   `json:"stat"`
	Status  models.Status `json:"status"`
	Demoted bool          `json:"demoted"`
}

// ApplyAnswer records an answer and demotes a learned entry once its misses
// exceed MaxMissesWhileLearned.
func ApplyAnswer(stat models.Stat, status models.Status, correct bool) Outcome {
	stat.Total++
	if correct {
		stat.Correct++
	}
	out := Outcome{Stat: stat, Status: status}
	if status == models.StatusLearned && stat.Incorrect() > MaxMissesWhileLearned {
		out.Status = models.StatusReview
		out.Demoted = true
	}
	return out
}

// ApplyPairMiss demotes a learned entry immediately. It is used by the
// standalone pair-match board.
func ApplyPairMiss(status models.Status) (models.Status, bool) {
	if status == models.StatusLearned {
		return models.StatusReview, true
	}
	return status, false
}

// IsWeak reports whether stat marks a weak point.
func IsWeak(stat models.Stat) bool {
	return stat.Total > WeakMinAttempts && stat.Accuracy() <= WeakAccuracy
}

// WeakPoints returns weak entries ordered from lowest accuracy.
func WeakPoints(entries []models.GrammarEntry, stats models.Stats) []models.WeakPoint {
	out := []models.WeakPoint{}
	for _, e := range entries {
		st, ok := stats[e.ID]
		if !ok || !IsWeak(st) {
			continue
		}
		out = append(out, models.WeakPoint{Entry: e, Stat: st, Accuracy: st.Accuracy()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Accuracy != out[j].Accuracy {
			return out[i].Accuracy < out[j].Accuracy
		}
		return out[i].Stat.Total > out[j].Stat.Total
	})
	return out
}

// Summarize builds the progress overview.
func Summarize(entries []models.GrammarEntry, stats models.Stats, status models.StatusMap, goal models.DailyGoal) models.ProgressSummary {
	sum := models.ProgressSummary{
		Total:        len(entries),
		DailyGoal:    goal.Clone(),
		LearnedToday: len(goal.LearnedIDs),
		GoalReached:  goal.Reached(),
		WeakPoints:   WeakPoints(entries, stats),
	}
	for _, e := range entries {
		switch status[e.ID] {
		case models.StatusLearned:
			sum.Learned++
		case models.StatusReview:
			sum.Review++
		default:
			sum.Unset++
		}
	}
	return sum
}
