package deletion

import (
	"errors"
	"time"

	"fbcleanup/pkg/browser"
	errs "fbcleanup/pkg/errors"
)

// Kind is the type of activity an Item represents
type Kind string

const (
	KindPost     Kind = "post"
	KindComment  Kind = "comment"
	KindReaction Kind = "reaction"
)

// Item is one deletable entry found on an activity log page
type Item struct {
	Kind       Kind
	DateString string
	// ParsedDate is nil when DateString could not be parsed
	ParsedDate *time.Time
	NaturalID  string
	Href       string
	// Link is the delete, remove or unlike control; nil when none was found
	Link    browser.Locator
	Element browser.Locator
}

// DateLabel returns the raw date text, or "Unknown" when there is none
func (it Item) DateLabel() string {
	if it.DateString == "" {
		return "Unknown"
	}
	return it.DateString
}

// ItemError records a failed or aborted item in a batch
type ItemError struct {
	// Kind is the item kind, or "block" / "rate_limit" for a synthetic stop
	Kind    string `json:"item"`
	Date    string `json:"date"`
	Message string `json:"error"`
}

const (
	errKindBlock     = "block"
	errKindRateLimit = "rate_limit"
)

// BatchOutcome is the result of processing one page
type BatchOutcome struct {
	Deleted       int          `json:"deleted"`
	Failed        int          `json:"failed"`
	Skipped       int          `json:"skipped"`
	Errors        []ItemError  `json:"errors"`
	DeletedByKind map[Kind]int `json:"deleted_by_kind,omitempty"`
	// Stop is errors.ErrBlocked or errors.ErrRateLimited when the batch ended
	// early, nil otherwise
	Stop error `json:"-"`
}

func newOutcome() BatchOutcome {
	return BatchOutcome{
		Errors:        []ItemError{},
		DeletedByKind: make(map[Kind]int),
	}
}

// Blocked reports whether the batch stopped on a platform block
func (o BatchOutcome) Blocked() bool {
	return errors.Is(o.Stop, errs.ErrBlocked)
}

// RateLimited reports whether the batch stopped at the hourly cap
func (o BatchOutcome) RateLimited() bool {
	return errors.Is(o.Stop, errs.ErrRateLimited)
}
