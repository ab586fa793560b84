package services

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/JRI98/incognitostickers/internal/api"
)

type catalogSticker struct {
	Namespace int32  `json:"namespace"`
	ID        int64  `json:"id"`
	Emoji     string `json:"emoji"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Size      int64  `json:"size"`
}

type catalogPack struct {
	ID         int64            `json:"id"`
	AccessHash int64            `json:"access_hash"`
	Title      string           `json:"title"`
	Stickers   []catalogSticker `json:"stickers"`
}

type catalogFile struct {
	Packs []catalogPack `json:"packs"`
}

// Catalog is the read-only set of sticker packs the server suggests from.
type Catalog struct {
	byEmoji map[string][]api.StickerFile
	byPack  map[int64][]api.StickerFile
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read catalog: %w", err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse catalog %s: %w", path, err)
	}
	return catalog, nil
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	catalog := &Catalog{
		byEmoji: make(map[string][]api.StickerFile),
		byPack:  make(map[int64][]api.StickerFile, len(file.Packs)),
	}
	for _, pack := range file.Packs {
		reference := &api.StickerPack{ID: pack.ID, AccessHash: pack.AccessHash}
		for _, sticker := range pack.Stickers {
			f := api.StickerFile{
				Namespace: sticker.Namespace,
				ID:        sticker.ID,
				Emoji:     sticker.Emoji,
				Pack:      reference,
				Width:     sticker.Width,
				Height:    sticker.Height,
				Size:      sticker.Size,
			}
			catalog.byEmoji[sticker.Emoji] = append(catalog.byEmoji[sticker.Emoji], f)
			catalog.byPack[pack.ID] = append(catalog.byPack[pack.ID], f)
		}
	}
	return catalog, nil
}

func (c *Catalog) Search(emoji string) []api.StickerFile {
	return c.byEmoji[emoji]
}

func (c *Catalog) Pack(id int64) ([]api.StickerFile, bool) {
	files, ok := c.byPack[id]
	return files, ok
}
