package stats

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"fbcleanup/pkg/deletion"
	"fbcleanup/pkg/logger"
	"fbcleanup/pkg/state"
)

var (
	// ErrAlreadyAccumulated is returned when seeding after page stats were applied
	ErrAlreadyAccumulated = errors.New("stats: cannot seed from state after page stats were applied")
	// ErrAlreadySeeded is returned when seeding twice
	ErrAlreadySeeded = errors.New("stats: already seeded from state")
)

const rule = "============================================================"

// Counters are the run totals
type Counters struct {
	TotalDeleted      int `json:"total_deleted"`
	PostsDeleted      int `json:"posts_deleted"`
	CommentsDeleted   int `json:"comments_deleted"`
	ReactionsRemoved  int `json:"reactions_removed"`
	TotalFailed       int `json:"total_failed"`
	TotalSkipped      int `json:"total_skipped"`
	ErrorsEncountered int `json:"errors_encountered"`
	BlocksDetected    int `json:"blocks_detected"`
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Counters
	StartTime    time.Time     `json:"start_time"`
	Elapsed      time.Duration `json:"elapsed"`
	ElapsedHours float64       `json:"elapsed_hours"`
	Rate         float64       `json:"rate_per_hour"`
}

// Reporter accumulates batch outcomes for a run. It may be seeded from a
// saved state once, and only before any batch has been applied.
type Reporter struct {
	mu          sync.Mutex
	counters    Counters
	start       time.Time
	now         func() time.Time
	seeded      bool
	accumulated bool
	logger      logger.Logger
}

// New returns a reporter whose clock starts now
func New() *Reporter {
	return NewWithStart(time.Now())
}

func NewWithStart(start time.Time) *Reporter {
	return &Reporter{
		start:  start,
		now:    time.Now,
		logger: logger.GetLogger(),
	}
}

func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

func (r *Reporter) WithLogger(l logger.Logger) *Reporter {
	r.logger = logger.OrGlobal(l)
	return r
}

// UpdateFromPageStats adds one batch outcome to the totals
func (r *Reporter) UpdateFromPageStats(o deletion.BatchOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accumulated = true
	r.counters.TotalDeleted += o.Deleted
	r.counters.TotalFailed += o.Failed
	r.counters.TotalSkipped += o.Skipped
	r.counters.ErrorsEncountered += len(o.Errors)
	r.counters.PostsDeleted += o.DeletedByKind[deletion.KindPost]
	r.counters.CommentsDeleted += o.DeletedByKind[deletion.KindComment]
	r.counters.ReactionsRemoved += o.DeletedByKind[deletion.KindReaction]
	if o.Blocked() {
		r.counters.BlocksDetected++
	}
}

// UpdateFromState seeds the lifetime totals from a saved state. It
// overwrites rather than adds, so it is refused once any page stats have
// been applied or the reporter was already seeded.
func (r *Reporter) UpdateFromState(s *state.ProgressState) error {
	if s == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accumulated {
		return ErrAlreadyAccumulated
	}
	if r.seeded {
		return ErrAlreadySeeded
	}

	r.seeded = true
	r.counters.TotalDeleted = s.TotalDeleted
	r.counters.ErrorsEncountered = s.ErrorsEncountered
	r.counters.BlocksDetected = 0
	if s.BlockDetected {
		r.counters.BlocksDetected = 1
	}

	r.logger.DebugWithFields("statistics seeded from saved state", map[string]interface{}{
		"total_deleted":      s.TotalDeleted,
		"errors_encountered": s.ErrorsEncountered,
	})
	return nil
}

// Seeded reports whether UpdateFromState has been applied
func (r *Reporter) Seeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seeded
}

// Snapshot returns a copy of the counters plus timing
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Reporter) snapshot() Snapshot {
	elapsed := r.now().Sub(r.start)
	hours := elapsed.Hours()
	return Snapshot{
		Counters:     r.counters,
		StartTime:    r.start,
		Elapsed:      elapsed,
		ElapsedHours: hours,
		Rate:         float64(r.counters.TotalDeleted) / math.Max(hours, 0.01),
	}
}

// Summary renders the end-of-run summary
func (r *Reporter) Summary() string {
	s := r.Snapshot()

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "CLEANUP SUMMARY")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Total Deleted: %d\n", s.TotalDeleted)
	fmt.Fprintf(&b, "  - Posts: %d\n", s.PostsDeleted)
	fmt.Fprintf(&b, "  - Comments: %d\n", s.CommentsDeleted)
	fmt.Fprintf(&b, "  - Reactions: %d\n", s.ReactionsRemoved)
	fmt.Fprintf(&b, "Total Failed: %d\n", s.TotalFailed)
	fmt.Fprintf(&b, "Total Skipped: %d\n", s.TotalSkipped)
	fmt.Fprintf(&b, "Errors Encountered: %d\n", s.ErrorsEncountered)
	fmt.Fprintf(&b, "Blocks Detected: %d\n", s.BlocksDetected)
	fmt.Fprintf(&b, "Time Elapsed: %s\n", s.Elapsed.Round(time.Second))
	fmt.Fprintf(&b, "Average Rate: %.1f items/hour\n", s.Rate)
	fmt.Fprintln(&b, rule)
	return b.String()
}

// PrintSummary writes Summary to w and logs the headline numbers
func (r *Reporter) PrintSummary(w io.Writer) {
	s := r.Snapshot()
	r.logger.InfoWithFields("cleanup summary", map[string]interface{}{
		"total_deleted":      s.TotalDeleted,
		"total_failed":       s.TotalFailed,
		"errors_encountered": s.ErrorsEncountered,
		"blocks_detected":    s.BlocksDetected,
		"rate_per_hour":      s.Rate,
	})
	if w != nil {
		io.WriteString(w, r.Summary())
	}
}

// GenerateReport renders a full text report, including the saved position
// when s is not nil.
func (r *Reporter) GenerateReport(s *state.ProgressState) string {
	snap := r.Snapshot()
	end := r.now()

	lines := []string{
		"Facebook Cleanup Report",
		rule,
		"Start Time: " + snap.StartTime.Format("2006-01-02 15:04:05"),
		"End Time: " + end.Format("2006-01-02 15:04:05"),
		"Duration: " + snap.Elapsed.Round(time.Second).String(),
		"",
		"Statistics:",
		fmt.Sprintf("  Total Deleted: %d", snap.TotalDeleted),
		fmt.Sprintf("    - Posts: %d", snap.PostsDeleted),
		fmt.Sprintf("    - Comments: %d", snap.CommentsDeleted),
		fmt.Sprintf("    - Reactions: %d", snap.ReactionsRemoved),
		fmt.Sprintf("  Total Failed: %d", snap.TotalFailed),
		fmt.Sprintf("  Total Skipped: %d", snap.TotalSkipped),
		fmt.Sprintf("  Errors: %d", snap.ErrorsEncountered),
		fmt.Sprintf("  Blocks: %d", snap.BlocksDetected),
		"",
		fmt.Sprintf("Average Rate: %.1f items/hour", snap.Rate),
	}

	if s != nil {
		lines = append(lines,
			"",
			"Progress State:",
			"  Current Year: "+optInt(s.CurrentYear),
			"  Current Month: "+optInt(s.CurrentMonth),
			"  Last URL: "+optString(s.LastURL),
		)
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

func optInt(v *int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprint(*v)
}

func optString(v *string) string {
	if v == nil || *v == "" {
		return "N/A"
	}
	return *v
}
