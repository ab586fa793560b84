package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/JRI98/incognitostickers/client/database"
	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/stickers"
)

type savedRemote interface {
	SavedStickers(ctx context.Context) ([]api.StickerFile, error)
	AddSaved(ctx context.Context, file api.StickerFile) error
	RemoveSaved(ctx context.Context, namespace int32, id int64) error
}

// savedStore keeps the server's saved stickers and the local cache in step.
// Reads are served from the cache.
type savedStore struct {
	database *database.Database
	remote   savedRemote
}

func (store savedStore) sync(ctx context.Context) error {
	files, err := store.remote.SavedStickers(ctx)
	if err != nil {
		return err
	}
	return store.database.WithTx(ctx, func(tx *database.Database) error {
		return tx.ReplaceSavedStickers(ctx, files)
	})
}

func (store savedStore) IsSaved(ctx context.Context, id stickers.MediaID) (bool, error) {
	return store.database.IsSavedSticker(ctx, id)
}

func (store savedStore) AddSaved(ctx context.Context, file stickers.File) error {
	stickerFile := api.FromFile(file)
	if err := store.remote.AddSaved(ctx, stickerFile); err != nil {
		return fmt.Errorf("failed to save sticker: %w", err)
	}
	return store.database.AddSavedSticker(ctx, stickerFile)
}

func (store savedStore) RemoveSaved(ctx context.Context, id stickers.MediaID) error {
	if err := store.remote.RemoveSaved(ctx, id.Namespace, id.ID); err != nil {
		return fmt.Errorf("failed to remove saved sticker: %w", err)
	}
	return store.database.WithTx(ctx, func(tx *database.Database) error {
		return tx.RemoveSavedSticker(ctx, id)
	})
}

type packSource interface {
	StickerPack(ctx context.Context, packID int64) ([]api.StickerFile, error)
}

// chatController is what the sticker panel of a chat screen can ask for.
type chatController struct {
	program *Program
	session *chatSession
	packs   packSource
}

func (controller chatController) SendSticker(ctx context.Context, file stickers.File) error {
	return controller.session.SendSticker(ctx, file)
}

func (controller chatController) PresentStickerPack(ctx context.Context, pack stickers.PackReference, send func(ctx context.Context, file stickers.File) error) error {
	files, err := controller.packs.StickerPack(ctx, pack.ID)
	if err != nil {
		return err
	}

	clearScreen()
	fmt.Printf("Sticker pack %d\n", pack.ID)
	for i, file := range files {
		fmt.Printf("%d. %s\n", i+1, file.Emoji)
	}

	index, ok, err := controller.program.readChoice(len(files))
	if err != nil || !ok {
		return err
	}
	return send(ctx, files[index].File())
}

// renderGrid prints the panel's stickers row by row, numbered from 1.
func renderGrid(panel *stickers.Panel, columns int) string {
	var b strings.Builder
	for i, item := range panel.Items() {
		marker := " "
		if item.Previewing() {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s%3d %-4s", marker, i+1, item.File.Emoji)
		if (i+1)%columns == 0 {
			b.WriteString("\n")
		}
	}
	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
