package dates

import (
	"testing"
	"time"

	"fbcleanup/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

func newParser() *Parser {
	p := NewParser().WithLogger(logger.NewNopLogger())
	p.Location = time.UTC
	return p
}

func TestParse(t *testing.T) {
	p := newParser()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"Today", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"  yesterday ", time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{"2 years ago", ref.Add(-2 * 365 * 24 * time.Hour)},
		{"1 year ago", ref.Add(-365 * 24 * time.Hour)},
		{"3 months ago", ref.Add(-90 * 24 * time.Hour)},
		{"2 weeks ago", ref.Add(-14 * 24 * time.Hour)},
		{"5 days ago", ref.Add(-5 * 24 * time.Hour)},
		{"4 hours ago", ref.Add(-4 * time.Hour)},
		{"2 years ago at 4:05pm", time.Date(2022, 6, 16, 16, 5, 0, 0, time.UTC)},
		{"November 3, 2020", time.Date(2020, 11, 3, 0, 0, 0, 0, time.UTC)},
		{"Nov 3, 2020 at 12:15 am", time.Date(2020, 11, 3, 0, 15, 0, 0, time.UTC)},
		{"Sept 9, 2019", time.Date(2019, 9, 9, 0, 0, 0, 0, time.UTC)},
		{"March 1", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"December 24", time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC)},
		{"June 15 at 12:00pm", time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)},
		{"2019-04-02", time.Date(2019, 4, 2, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, ok := p.Parse(tt.in, ref)
		if !ok {
			t.Errorf("Parse(%q) failed", tt.in)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	p := newParser()
	for _, in := range []string{"", "   ", "a while back", "soon"} {
		_, ok := p.Parse(in, ref)
		assert.False(t, ok, "Parse(%q) should fail", in)
	}
}

func TestDateparseFallbackRollsBackFutureDates(t *testing.T) {
	p := newParser()
	got, ok := p.Parse("10/20/2024", ref)
	require.True(t, ok)
	assert.Equal(t, 2023, got.Year())
}

func TestIsBefore(t *testing.T) {
	p := newParser()
	target := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.IsBefore("March 3, 2019", target, ref))
	assert.True(t, p.IsBefore("5 years ago", target, ref))
	assert.False(t, p.IsBefore("yesterday", target, ref))
	assert.False(t, p.IsBefore("January 1, 2021", target, ref))
	assert.False(t, p.IsBefore("not a date", target, ref))
}
