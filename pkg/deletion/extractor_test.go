package deletion

import (
	"context"
	"errors"
	"testing"
	"time"

	"fbcleanup/pkg/browser"
	"fbcleanup/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activityHTML = `<html><body>
<div role="article" id="s1">
  <span>You posted on your timeline.</span>
  <abbr title="March 3, 2019">Mar 3</abbr>
  <a href="/delete.php?story_id=111&amp;id=111">Delete</a>
</div>
<div role="article" data-id="222">
  <span>You commented on a post.</span>
  <abbr>June 5, 2018</abbr>
  <a href="/comment/remove?id=222">Remove</a>
</div>
<div role="article">
  <p>You liked a photo.</p>
  <abbr>5 years ago</abbr>
</div>
<div role="article">
  <p>You posted something new.</p>
  <abbr title="January 5, 2022">Jan 5</abbr>
  <a href="/delete.php?id=444">Delete</a>
</div>
<div role="article">
  <p>You shared a link.</p>
  <abbr>May 1, 2015</abbr>
</div>
<div role="article">
  <p>You posted a note.</p>
  <abbr>a while back</abbr>
  <a href="/delete.php?id=666">Delete</a>
</div>
</body></html>`

func newTestExtractor() *Extractor {
	target := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)
	return NewExtractor(target, logger.NewNopLogger()).WithClock(func() time.Time { return testNow })
}

func TestExtractorFindsDeletableItems(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.SetContent(activityHTML)

	items, err := newTestExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, items, 4)

	post := items[0]
	assert.Equal(t, KindPost, post.Kind)
	assert.Equal(t, "March 3, 2019", post.DateString)
	require.NotNil(t, post.ParsedDate)
	assert.Equal(t, 2019, post.ParsedDate.Year())
	assert.Equal(t, "s1", post.NaturalID)
	assert.Equal(t, "/delete.php?story_id=111&id=111", post.Href)
	assert.NotNil(t, post.Link)
	assert.NotNil(t, post.Element)

	comment := items[1]
	assert.Equal(t, KindComment, comment.Kind)
	assert.Equal(t, "222", comment.NaturalID)
	assert.Equal(t, "June 5, 2018", comment.DateString)

	reaction := items[2]
	assert.Equal(t, KindReaction, reaction.Kind)
	assert.Empty(t, reaction.Href)
	assert.Nil(t, reaction.Link)

	undated := items[3]
	assert.Equal(t, KindPost, undated.Kind)
	assert.Nil(t, undated.ParsedDate)
	assert.Equal(t, "666", undated.NaturalID)

	assert.Contains(t, page.LoadStates, browser.LoadStateDOMContentLoaded)
}

func TestExtractorLocatorsResolveOnPage(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.SetContent(activityHTML)
	page.Set(`a[href="/delete.php?story_id=111&id=111"]`, &browser.FakeElement{Text: "Delete"})
	page.Set(`[id="s1"]`, &browser.FakeElement{})

	items, err := newTestExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	ctx := context.Background()
	visible, _ := items[0].Link.IsVisible(ctx)
	assert.True(t, visible)
	n, _ := items[0].Element.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestExtractorContainerFallback(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.SetContent(`<article><p>You shared a memory.</p><time>April 2, 2017</time><a href="/remove?id=9">Remove</a></article>`)

	items, err := newTestExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindPost, items[0].Kind)
	assert.Equal(t, "April 2, 2017", items[0].DateString)
	assert.Equal(t, "9", items[0].NaturalID)
}

func TestExtractorDateFromText(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.SetContent(`<div role="article"><p>You posted this on August 9, 2016 at 3:10 PM</p><a href="/delete.php?id=5">Delete</a></div>`)

	items, err := newTestExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "August 9, 2016", items[0].DateString)
}

func TestExtractorNoContainers(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.SetContent(`<p>Nothing to show</p>`)

	items, err := newTestExtractor().Extract(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestExtractorContentError(t *testing.T) {
	page := browser.NewFakePage(activityURL)
	page.SetContentError(errors.New("target closed"))

	_, err := newTestExtractor().Extract(context.Background(), page)
	assert.Error(t, err)
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		text    string
		hasLink bool
		want    Kind
	}{
		{"You liked Jane's photo", false, KindReaction},
		{"You reacted to a post", true, KindReaction},
		{"You commented on a post", true, KindComment},
		{"View Context", true, KindComment},
		{"You shared a link", true, KindPost},
		{"Created a post", false, KindPost},
		{"Something", true, KindPost},
		{"Something", false, ""},
	}

	for _, tt := range tests {
		if got := detectKind(tt.text, tt.hasLink); got != tt.want {
			t.Errorf("detectKind(%q, %v) = %q, want %q", tt.text, tt.hasLink, got, tt.want)
		}
	}
}
