package stickers

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoItem = errors.New("no sticker at index")
	ErrNoPack = errors.New("sticker has no pack")
)

type Strings struct {
	Send                string
	AddToFavorites      string
	RemoveFromFavorites string
	ViewPack            string
	Cancel              string
}

var DefaultStrings = Strings{
	Send:                "Send Sticker",
	AddToFavorites:      "Add to Favorites",
	RemoveFromFavorites: "Remove from Favorites",
	ViewPack:            "View Sticker Pack",
	Cancel:              "Cancel",
}

type MenuColor int

const (
	ColorAccent MenuColor = iota
	ColorDestructive
)

type MenuItem struct {
	Title  string
	Color  MenuColor
	Bold   bool
	Action func(ctx context.Context) error
}

type PeekContent struct {
	File File
	Menu []MenuItem
}

type SavedStore interface {
	IsSaved(ctx context.Context, id MediaID) (bool, error)
	AddSaved(ctx context.Context, file File) error
	RemoveSaved(ctx context.Context, id MediaID) error
}

// ControllerInteraction is what the chat screen hosting the panel can do.
type ControllerInteraction interface {
	SendSticker(ctx context.Context, file File) error
	PresentStickerPack(ctx context.Context, pack PackReference, send func(ctx context.Context, file File) error) error
}

// PeekMenu builds the preview menu for the sticker at index.
func (p *Panel) PeekMenu(ctx context.Context, index int, controller ControllerInteraction, store SavedStore) (PeekContent, error) {
	item, ok := p.ItemAt(index)
	if !ok {
		return PeekContent{}, fmt.Errorf("peek %d: %w", index, ErrNoItem)
	}
	file := item.File

	isSaved, err := store.IsSaved(ctx, file.ID)
	if err != nil {
		return PeekContent{}, fmt.Errorf("could not check saved sticker: %w", err)
	}

	favorites := MenuItem{Title: p.strings.AddToFavorites, Color: ColorAccent}
	favorites.Action = func(ctx context.Context) error {
		return store.AddSaved(ctx, file)
	}
	if isSaved {
		favorites = MenuItem{Title: p.strings.RemoveFromFavorites, Color: ColorDestructive}
		favorites.Action = func(ctx context.Context) error {
			return store.RemoveSaved(ctx, file.ID)
		}
	}

	menu := []MenuItem{
		{
			Title: p.strings.Send,
			Color: ColorAccent,
			Bold:  true,
			Action: func(ctx context.Context) error {
				return controller.SendSticker(ctx, file)
			},
		},
		favorites,
		{
			Title: p.strings.ViewPack,
			Color: ColorAccent,
			Action: func(ctx context.Context) error {
				if file.Pack == nil {
					return ErrNoPack
				}
				return controller.PresentStickerPack(ctx, *file.Pack, controller.SendSticker)
			},
		},
		{
			Title:  p.strings.Cancel,
			Color:  ColorAccent,
			Action: func(context.Context) error { return nil },
		},
	}

	return PeekContent{File: file, Menu: menu}, nil
}
