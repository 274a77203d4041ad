package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RecognizedKeys are the fields whose presence marks a file as progress
// state. One is enough; anything else is accepted and carried along.
var RecognizedKeys = []string{"last_updated", "total_deleted", "errors_encountered", "block_detected"}

// Timestamp is a time that also reads the zone-less ISO form written by
// earlier versions of the tool.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", raw)
}

// ProgressState is the persisted resume record
type ProgressState struct {
	LastUpdated       Timestamp  `json:"last_updated"`
	CurrentYear       *int       `json:"current_year"`
	CurrentMonth      *int       `json:"current_month"`
	CurrentCategory   *string    `json:"current_category"`
	TotalDeleted      int        `json:"total_deleted"`
	DeletedToday      int        `json:"deleted_today"`
	LastURL           *string    `json:"last_url"`
	ErrorsEncountered int        `json:"errors_encountered"`
	BlockDetected     bool       `json:"block_detected"`
	BlockCount        int        `json:"block_count"`
	LastBlockTime     *Timestamp `json:"last_block_time,omitempty"`
	SessionStart      Timestamp  `json:"session_start"`

	// Extra holds keys this version does not know about
	Extra map[string]json.RawMessage `json:"-"`
}

type progressAlias ProgressState

var knownKeys = func() map[string]bool {
	keys := make(map[string]bool)
	var fields map[string]json.RawMessage
	b, _ := json.Marshal(progressAlias{LastBlockTime: &Timestamp{}})
	_ = json.Unmarshal(b, &fields)
	for k := range fields {
		keys[k] = true
	}
	return keys
}()

func (s *ProgressState) UnmarshalJSON(b []byte) error {
	var alias progressAlias
	if err := json.Unmarshal(b, &alias); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for k, v := range fields {
		if knownKeys[k] {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]json.RawMessage)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return err
		}
		alias.Extra[k] = buf.Bytes()
	}
	*s = ProgressState(alias)
	return nil
}

func (s ProgressState) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(progressAlias(s))
	if err != nil || len(s.Extra) == 0 {
		return b, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, v := range s.Extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// DefaultState is the record used when no valid file exists
func DefaultState(now time.Time) *ProgressState {
	return &ProgressState{
		LastUpdated:  Timestamp{now},
		SessionStart: Timestamp{now},
	}
}

// Position returns the last visited year and month
func (s *ProgressState) Position() (year, month int, ok bool) {
	if s == nil || s.CurrentYear == nil || s.CurrentMonth == nil {
		return 0, 0, false
	}
	return *s.CurrentYear, *s.CurrentMonth, true
}

// SetPosition records the page about to be processed
func (s *ProgressState) SetPosition(year, month int, url string) {
	s.CurrentYear = &year
	s.CurrentMonth = &month
	if url != "" {
		s.LastURL = &url
	}
}

// URL returns last_url or ""
func (s *ProgressState) URL() string {
	if s == nil || s.LastURL == nil {
		return ""
	}
	return *s.LastURL
}

// Clone returns a deep copy
func (s *ProgressState) Clone() *ProgressState {
	if s == nil {
		return nil
	}
	c := *s
	if s.CurrentYear != nil {
		v := *s.CurrentYear
		c.CurrentYear = &v
	}
	if s.CurrentMonth != nil {
		v := *s.CurrentMonth
		c.CurrentMonth = &v
	}
	if s.CurrentCategory != nil {
		v := *s.CurrentCategory
		c.CurrentCategory = &v
	}
	if s.LastURL != nil {
		v := *s.LastURL
		c.LastURL = &v
	}
	if s.LastBlockTime != nil {
		v := *s.LastBlockTime
		c.LastBlockTime = &v
	}
	if s.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}
