package stickers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sticker(id int64) File {
	return File{ID: MediaID{Namespace: 1, ID: id}, Emoji: "😀"}
}

func shownIDs(p *Panel) []int64 {
	var ids []int64
	for _, item := range p.Items() {
		ids = append(ids, item.File.ID.ID)
	}
	return ids
}

func TestEntryEquality(t *testing.T) {
	a := Entry{Index: 0, File: sticker(1)}
	moved := Entry{Index: 1, File: sticker(1)}
	resized := Entry{Index: 0, File: File{ID: sticker(1).ID, Width: 512}}

	assert.False(t, a.Equal(moved))
	assert.True(t, a.Equal(resized))
	assert.True(t, a.Less(moved))
}

func TestPrepareTransitionFirstResults(t *testing.T) {
	to := entriesFromFiles([]File{sticker(1), sticker(2)})

	transition := PrepareTransition(nil, to, &Interaction{})

	assert.Empty(t, transition.Deletions)
	assert.Empty(t, transition.Updates)
	require.Len(t, transition.Insertions, 2)
	assert.Equal(t, sticker(2).ID, transition.Insertions[1].Item.Key())
}

func TestPanelQueuesUntilViewport(t *testing.T) {
	p := NewPanel(DefaultStrings)

	var applied []bool
	p.OnTransitionApplied = func(firstTime bool) {
		applied = append(applied, firstTime)
	}

	require.NoError(t, p.UpdateResults([]File{sticker(1), sticker(2)}))
	require.NoError(t, p.UpdateResults([]File{sticker(2), sticker(3)}))

	assert.Equal(t, 2, p.PendingTransitions())
	assert.Empty(t, p.Items())
	assert.Empty(t, applied)

	require.NoError(t, p.SetViewport(Viewport{Width: 320, Height: 200}))

	assert.Equal(t, 0, p.PendingTransitions())
	assert.Equal(t, []int64{2, 3}, shownIDs(p))
	assert.Equal(t, []bool{true, false}, applied)
}

func TestPanelAppliesImmediatelyWithViewport(t *testing.T) {
	p := NewPanel(DefaultStrings)
	require.NoError(t, p.SetViewport(Viewport{Width: 320, Height: 200}))

	require.NoError(t, p.UpdateResults([]File{sticker(1), sticker(2), sticker(3)}))
	require.NoError(t, p.UpdateResults([]File{sticker(3), sticker(1), sticker(4)}))

	assert.Equal(t, []int64{3, 1, 4}, shownIDs(p))

	require.NoError(t, p.UpdateResults(nil))
	assert.Empty(t, shownIDs(p))
}

func TestPanelEmptyFirstResultsStillCountAsFirst(t *testing.T) {
	p := NewPanel(DefaultStrings)
	require.NoError(t, p.SetViewport(Viewport{Width: 320, Height: 200}))

	var applied []bool
	p.OnTransitionApplied = func(firstTime bool) {
		applied = append(applied, firstTime)
	}

	require.NoError(t, p.UpdateResults(nil))
	require.NoError(t, p.UpdateResults([]File{sticker(1)}))

	assert.Equal(t, []bool{true, false}, applied)
}

func TestViewportLayout(t *testing.T) {
	v := Viewport{Width: 340, Height: 150, LeftInset: 10, RightInset: 10}

	assert.Equal(t, 51.0, v.TopInset())
	assert.Equal(t, 4, v.Columns())

	assert.Equal(t, 0.0, Viewport{Height: 50}.TopInset())
	assert.Equal(t, 1, Viewport{Width: 10}.Columns())
}

func TestPanelContentHeight(t *testing.T) {
	p := NewPanel(DefaultStrings)
	require.NoError(t, p.SetViewport(Viewport{Width: 132, Height: 150}))
	require.NoError(t, p.UpdateResults([]File{sticker(1), sticker(2), sticker(3)}))

	assert.Equal(t, 51.0+2*ItemSize, p.ContentHeight())
}

func TestSetPreviewedItem(t *testing.T) {
	p := NewPanel(DefaultStrings)
	require.NoError(t, p.SetViewport(Viewport{Width: 320, Height: 200}))
	require.NoError(t, p.UpdateResults([]File{sticker(1), sticker(2)}))

	previewed := sticker(2)
	assert.True(t, p.SetPreviewedItem(&previewed))
	assert.False(t, p.SetPreviewedItem(&previewed))

	items := p.Items()
	assert.False(t, items[0].Previewing())
	assert.True(t, items[1].Previewing())

	require.NoError(t, p.UpdateResults([]File{sticker(2), sticker(5)}))
	item, ok := p.ItemAt(1)
	require.True(t, ok)
	assert.False(t, item.Previewing())

	assert.True(t, p.SetPreviewedItem(nil))
	assert.Nil(t, p.PreviewedItem())
	for _, item := range p.Items() {
		assert.False(t, item.Previewing())
	}
}

func TestPanelReadsDuringPreview(t *testing.T) {
	p := NewPanel(DefaultStrings)
	require.NoError(t, p.SetViewport(Viewport{Width: 320, Height: 200}))
	require.NoError(t, p.UpdateResults([]File{sticker(1), sticker(2)}))

	snapshot := p.Items()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			previewed := sticker(int64(1 + i%2))
			p.SetPreviewedItem(&previewed)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			for _, item := range p.Items() {
				_ = item.Previewing()
			}
			if item, ok := p.ItemAt(0); ok {
				_ = item.Previewing()
			}
		}
	}()
	wg.Wait()

	for _, item := range snapshot {
		assert.False(t, item.Previewing())
	}
}
