package grid

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var ErrIndexOutOfRange = errors.New("index out of range")

type Item interface {
	Key() any
}

type InsertItem struct {
	Index         int
	Item          Item
	PreviousIndex int
}

type UpdateItem struct {
	Index         int
	PreviousIndex int
	Item          Item
}

type Stationary int

const (
	StationaryNone Stationary = iota
	StationaryAll
)

type Layout struct {
	Columns    int
	TopInset   float64
	ItemHeight float64
}

type Transaction struct {
	DeleteItems  []int
	InsertItems  []InsertItem
	UpdateItems  []UpdateItem
	UpdateLayout *Layout
	Stationary   Stationary
}

// Node is a live, ordered list of grid items.
type Node struct {
	items  []Item
	layout Layout
}

func NewNode() *Node {
	return &Node{layout: Layout{Columns: 1}}
}

// Transaction applies deletions, insertions and updates in that order, then
// the layout. The node is left unchanged when an index is out of range.
func (n *Node) Transaction(tx Transaction) error {
	items := slices.Clone(n.items)

	deletions := slices.Clone(tx.DeleteItems)
	slices.Sort(deletions)
	slices.Reverse(deletions)
	for _, index := range deletions {
		if index < 0 || index >= len(items) {
			return fmt.Errorf("delete %d of %d items: %w", index, len(items), ErrIndexOutOfRange)
		}
		items = slices.Delete(items, index, index+1)
	}

	insertions := slices.Clone(tx.InsertItems)
	slices.SortStableFunc(insertions, func(a, b InsertItem) int {
		return a.Index - b.Index
	})
	for _, insertion := range insertions {
		if insertion.Index < 0 || insertion.Index > len(items) {
			return fmt.Errorf("insert at %d of %d items: %w", insertion.Index, len(items), ErrIndexOutOfRange)
		}
		items = slices.Insert(items, insertion.Index, insertion.Item)
	}

	for _, update := range tx.UpdateItems {
		if update.Index < 0 || update.Index >= len(items) {
			return fmt.Errorf("update %d of %d items: %w", update.Index, len(items), ErrIndexOutOfRange)
		}
		items[update.Index] = update.Item
	}

	n.items = items
	if tx.UpdateLayout != nil {
		layout := *tx.UpdateLayout
		if layout.Columns < 1 {
			layout.Columns = 1
		}
		n.layout = layout
	}

	return nil
}

func (n *Node) Layout() Layout {
	return n.layout
}

func (n *Node) Len() int {
	return len(n.items)
}

func (n *Node) Items() []Item {
	return slices.Clone(n.items)
}

func (n *Node) ItemAt(index int) (Item, bool) {
	if index < 0 || index >= len(n.items) {
		return nil, false
	}
	return n.items[index], true
}

func (n *Node) ForEachItem(f func(index int, item Item)) {
	for i, item := range n.items {
		f(i, item)
	}
}

// ContentHeight is the top inset plus the height of all rows.
func (n *Node) ContentHeight() float64 {
	rows := math.Ceil(float64(len(n.items)) / float64(n.layout.Columns))
	return n.layout.TopInset + rows*n.layout.ItemHeight
}
