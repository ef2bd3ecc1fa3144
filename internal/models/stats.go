package models

// Stat counts answers given for one entry.
type Stat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

func (s Stat) Incorrect() int {
	return s.Total - s.Correct
}

// Accuracy returns correct/total, or 0 when nothing was answered.
func (s Stat) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Stats maps entry ids to their answer counts.
type Stats map[string]Stat

// Clone returns a copy of the map.
func (s Stats) Clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Status is the learning status of an entry.
type Status string

const (
	StatusUnset   Status = ""
	StatusLearned Status = "learned"
	StatusReview  Status = "review"
)

// StatusMap maps entry ids to their learning status. Unset entries are absent.
type StatusMap map[string]Status

// Set assigns status to id, removing the key for StatusUnset.
func (m StatusMap) Set(id string, status Status) {
	if status == StatusUnset {
		delete(m, id)
		return
	}
	m[id] = status
}

func (m StatusMap) Clone() StatusMap {
	out := make(StatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WeakPoint is an entry whose accuracy stays low after enough attempts.
type WeakPoint struct {
	Entry    GrammarEntry `json:"entry"`
	Stat     Stat         `json:"stat"`
	Accuracy float64      `json:"accuracy"`
}

// ProgressSummary aggregates learning progress for the dashboard.
type ProgressSummary struct {
	Total        int         `json:"total"`
	Learned      int         `json:"learned"`
	Review       int         `json:"review"`
	Unset        int         `json:"unset"`
	DailyGoal    DailyGoal   `json:"daily_goal"`
	LearnedToday int         `json:"learned_today"`
	GoalReached  bool        `json:"goal_reached"`
	WeakPoints   []WeakPoint `json:"weak_points"`
}
