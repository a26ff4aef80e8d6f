package materialize

import "time"

// AnchorChange is the per-marker audit record. It is the system's only
// persisted evidence of what was actually injected into the tree.
type AnchorChange struct {
	File          string `json:"file"`
	Marker        string `json:"marker"`
	Found         bool   `json:"found"`
	ReplacedCount int    `json:"replacedCount"`
	BeforeSample  string `json:"beforeSample,omitempty"`
	AfterSample   string `json:"afterSample,omitempty"`
}

// FileChanges groups the changes applied to one file.
type FileChanges struct {
	File    string         `json:"file"`
	Changes []AnchorChange `json:"changes"`
}

// ApplyResult is the persisted apply audit.
type ApplyResult struct {
	RunID                string        `json:"runId"`
	Files                []FileChanges `json:"files"`
	AuxFiles             []string      `json:"auxFiles,omitempty"`
	CriticalReplacements int           `json:"criticalReplacements"`
	GeneratedAt          time.Time     `json:"generatedAt"`
}

// TotalReplacements sums replacement counts across all files.
func (r *ApplyResult) TotalReplacements() int {
	n := 0
	for _, f := range r.Files {
		for _, c := range f.Changes {
			n += c.ReplacedCount
		}
	}
	return n
}
