package api

import (
	"encoding/hex"

	"github.com/JRI98/incognitostickers/internal/contacts"
	"github.com/JRI98/incognitostickers/internal/stickers"
)

type StickerPack struct {
	ID         int64 `json:"id"`
	AccessHash int64 `json:"access_hash"`
}

type StickerFile struct {
	Namespace int32        `json:"namespace"`
	ID        int64        `json:"id" validate:"required"`
	Emoji     string       `json:"emoji" validate:"max=16"`
	Pack      *StickerPack `json:"pack,omitempty"`
	Width     int          `json:"width" validate:"gte=0"`
	Height    int          `json:"height" validate:"gte=0"`
	Size      int64        `json:"size" validate:"gte=0"`
}

func (f StickerFile) MediaID() stickers.MediaID {
	return stickers.MediaID{Namespace: f.Namespace, ID: f.ID}
}

func (f StickerFile) File() stickers.File {
	file := stickers.File{
		ID:     f.MediaID(),
		Emoji:  f.Emoji,
		Width:  f.Width,
		Height: f.Height,
		Size:   f.Size,
	}
	if f.Pack != nil {
		file.Pack = &stickers.PackReference{ID: f.Pack.ID, AccessHash: f.Pack.AccessHash}
	}
	return file
}

func FromFile(file stickers.File) StickerFile {
	f := StickerFile{
		Namespace: file.ID.Namespace,
		ID:        file.ID.ID,
		Emoji:     file.Emoji,
		Width:     file.Width,
		Height:    file.Height,
		Size:      file.Size,
	}
	if file.Pack != nil {
		f.Pack = &StickerPack{ID: file.Pack.ID, AccessHash: file.Pack.AccessHash}
	}
	return f
}

func Files(files []StickerFile) []stickers.File {
	result := make([]stickers.File, 0, len(files))
	for _, f := range files {
		result = append(result, f.File())
	}
	return result
}

type Peer struct {
	PublicIdentityKey []byte `json:"public_identity_key"`
	Name              string `json:"name"`
}

func (p Peer) Contact() contacts.Peer {
	return contacts.Peer{
		ID:                contacts.PeerID(hex.EncodeToString(p.PublicIdentityKey)),
		Name:              p.Name,
		PublicIdentityKey: p.PublicIdentityKey,
		Source:            contacts.Global,
	}
}

type RegisterData struct {
	Name               string   `json:"name" validate:"max=64"`
	PublicIdentityKeys [][]byte `json:"public_identity_keys" validate:"required"`
}

type SendMessage struct {
	ToPublicIdentityKey []byte `json:"to_public_identity_key" validate:"required"`
	Data                []byte `json:"data" validate:"required"`
}

type SendMessagesData struct {
	Messages []SendMessage `json:"messages" validate:"required,dive"`
	Index    *uint64       `json:"index" validate:"required"`
}

type Message struct {
	FromPublicIdentityKey []byte `json:"from_public_identity_key"`
	Data                  []byte `json:"data"`
	CreatedAt             int64  `json:"created_at"`
}

// StickerMessage is the plaintext of a chat message carrying a sticker.
type StickerMessage struct {
	Sticker StickerFile `json:"sticker"`
}
