package stickers

import (
	"fmt"

	"github.com/JRI98/incognitostickers/internal/grid"
	"github.com/JRI98/incognitostickers/internal/listdiff"
	"github.com/samber/lo"
)

type MediaID struct {
	Namespace int32
	ID        int64
}

func (id MediaID) String() string {
	return fmt.Sprintf("%d:%d", id.Namespace, id.ID)
}

type PackReference struct {
	ID         int64
	AccessHash int64
}

type File struct {
	ID     MediaID
	Emoji  string
	Pack   *PackReference
	Width  int
	Height int
	Size   int64
}

type Entry struct {
	Index int
	File  File
}

func (e Entry) StableID() MediaID {
	return e.File.ID
}

func (e Entry) Equal(other Entry) bool {
	return e.Index == other.Index && e.StableID() == other.StableID()
}

func (e Entry) Less(other Entry) bool {
	return e.Index < other.Index
}

func (e Entry) item(interaction *Interaction) *GridItem {
	return &GridItem{File: e.File, previewing: interaction.isPreviewing(e.File.ID)}
}

// GridItem is how a sticker lives in the panel's grid.
type GridItem struct {
	File       File
	previewing bool
}

func (i GridItem) Key() any {
	return i.File.ID
}

func (i GridItem) Previewing() bool {
	return i.previewing
}

// Interaction is state shared by every item in one panel.
type Interaction struct {
	PreviewedItem *File
}

func (i *Interaction) isPreviewing(id MediaID) bool {
	return i.PreviewedItem != nil && i.PreviewedItem.ID == id
}

type GridTransition struct {
	Deletions  []int
	Insertions []grid.InsertItem
	Updates    []grid.UpdateItem
	Stationary grid.Stationary
}

func PrepareTransition(from, to []Entry, interaction *Interaction) GridTransition {
	t := listdiff.Reconcile(from, to, Entry.StableID, Entry.Equal)

	return GridTransition{
		Deletions: t.Deletions,
		Insertions: lo.Map(t.Insertions, func(insertion listdiff.Insertion[Entry], _ int) grid.InsertItem {
			return grid.InsertItem{Index: insertion.Index, Item: insertion.Entry.item(interaction), PreviousIndex: insertion.PreviousIndex}
		}),
		Updates: lo.Map(t.Updates, func(update listdiff.Update[Entry], _ int) grid.UpdateItem {
			return grid.UpdateItem{Index: update.Index, PreviousIndex: update.PreviousIndex, Item: update.Entry.item(interaction)}
		}),
		Stationary: grid.StationaryNone,
	}
}

func entriesFromFiles(files []File) []Entry {
	return lo.Map(files, func(file File, i int) Entry {
		return Entry{Index: i, File: file}
	})
}
