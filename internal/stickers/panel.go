package stickers

import (
	"fmt"
	"math"
	"sync"

	"github.com/JRI98/incognitostickers/internal/grid"
)

const (
	ItemSize             = 66.0
	minimumVisibleHeight = 66.0 * 1.5
)

type Viewport struct {
	Width      float64
	Height     float64
	LeftInset  float64
	RightInset float64
}

// TopInset leaves room for at least one and a half rows of stickers at the
// bottom of the viewport.
func (v Viewport) TopInset() float64 {
	return math.Max(v.Height-math.Floor(minimumVisibleHeight), 0)
}

func (v Viewport) Columns() int {
	columns := int(math.Floor((v.Width - v.LeftInset - v.RightInset) / ItemSize))
	return max(columns, 1)
}

type queuedTransition struct {
	transition GridTransition
	firstTime  bool
}

// Panel feeds sticker suggestion results into a grid. Transitions computed
// before the panel has a viewport are queued and applied once it gets one.
type Panel struct {
	mu sync.Mutex

	grid        *grid.Node
	interaction *Interaction
	strings     Strings

	viewport          *Viewport
	currentEntries    []Entry
	hasEntries        bool
	queuedTransitions []queuedTransition

	OnTransitionApplied func(firstTime bool)
}

func NewPanel(strings Strings) *Panel {
	return &Panel{
		grid:        grid.NewNode(),
		interaction: &Interaction{},
		strings:     strings,
	}
}

func (p *Panel) UpdateResults(files []File) error {
	p.mu.Lock()

	firstTime := !p.hasEntries
	previousEntries := p.currentEntries
	entries := entriesFromFiles(files)
	p.currentEntries = entries
	p.hasEntries = true

	transition := PrepareTransition(previousEntries, entries, p.interaction)
	p.queuedTransitions = append(p.queuedTransitions, queuedTransition{transition: transition, firstTime: firstTime})

	var applied []bool
	var err error
	if p.viewport != nil {
		applied, err = p.dequeueTransitions()
	}
	p.mu.Unlock()

	p.notify(applied)
	return err
}

func (p *Panel) SetViewport(viewport Viewport) error {
	p.mu.Lock()

	hadViewport := p.viewport != nil
	p.viewport = &viewport

	err := p.grid.Transaction(grid.Transaction{
		UpdateLayout: &grid.Layout{
			Columns:    viewport.Columns(),
			TopInset:   viewport.TopInset(),
			ItemHeight: ItemSize,
		},
		Stationary: grid.StationaryAll,
	})
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("failed to update grid layout: %w", err)
	}

	var applied []bool
	if !hadViewport {
		applied, err = p.dequeueTransitions()
	}
	p.mu.Unlock()

	p.notify(applied)
	return err
}

func (p *Panel) dequeueTransitions() ([]bool, error) {
	var applied []bool
	for len(p.queuedTransitions) > 0 {
		queued := p.queuedTransitions[0]
		p.queuedTransitions = p.queuedTransitions[1:]

		err := p.grid.Transaction(grid.Transaction{
			DeleteItems: queued.transition.Deletions,
			InsertItems: queued.transition.Insertions,
			UpdateItems: queued.transition.Updates,
			Stationary:  queued.transition.Stationary,
		})
		if err != nil {
			return applied, fmt.Errorf("failed to apply sticker transition: %w", err)
		}
		applied = append(applied, queued.firstTime)
	}
	return applied, nil
}

func (p *Panel) notify(applied []bool) {
	if p.OnTransitionApplied == nil {
		return
	}
	for _, firstTime := range applied {
		p.OnTransitionApplied(firstTime)
	}
}

func (p *Panel) PendingTransitions() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.queuedTransitions)
}

// Items returns copies of the stickers currently shown, in grid order.
func (p *Panel) Items() []GridItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := make([]GridItem, 0, p.grid.Len())
	p.grid.ForEachItem(func(_ int, item grid.Item) {
		items = append(items, *item.(*GridItem))
	})
	return items
}

func (p *Panel) ItemAt(index int) (GridItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.grid.ItemAt(index)
	if !ok {
		return GridItem{}, false
	}
	return *item.(*GridItem), true
}

func (p *Panel) ContentHeight() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.grid.ContentHeight()
}

func (p *Panel) PreviewedItem() *File {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.interaction.PreviewedItem
}

// SetPreviewedItem marks the sticker shown in a preview, or clears the mark
// when file is nil. It reports whether anything changed.
func (p *Panel) SetPreviewedItem(file *File) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.interaction.PreviewedItem
	if (current == nil && file == nil) || (current != nil && file != nil && current.ID == file.ID) {
		return false
	}
	p.interaction.PreviewedItem = file

	p.grid.ForEachItem(func(_ int, item grid.Item) {
		stickerItem := item.(*GridItem)
		stickerItem.previewing = p.interaction.isPreviewing(stickerItem.File.ID)
	})
	return true
}
