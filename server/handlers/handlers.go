package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/server/services"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

const maxPeerResults = 50

type Messaging interface {
	Register(ctx context.Context, publicIdentityKey []byte, identityKeys [][]byte) error
	ReceiveMessages(ctx context.Context, publicIdentityKey []byte) ([]api.Message, error)
	SendMessage(ctx context.Context, from []byte, to []byte, data []byte, messageIndex uint64) error
}

type SavedStickers interface {
	SavedStickers(ctx context.Context, owner []byte) ([]api.StickerFile, error)
	AddSavedSticker(ctx context.Context, owner []byte, file api.StickerFile) error
	RemoveSavedSticker(ctx context.Context, owner []byte, namespace int32, id int64) error
}

type Directory interface {
	PutPeer(ctx context.Context, peer api.Peer) error
	Peers(ctx context.Context) ([]api.Peer, error)
}

type Catalog interface {
	Search(emoji string) []api.StickerFile
	Pack(id int64) ([]api.StickerFile, bool)
}

type Handler struct {
	Messaging     Messaging
	SavedStickers SavedStickers
	Directory     Directory
	Catalog       Catalog
}

func NewHandler(natsService *services.NATSService, catalog *services.Catalog) *Handler {
	return &Handler{
		Messaging:     natsService,
		SavedStickers: natsService,
		Directory:     natsService,
		Catalog:       catalog,
	}
}

func validateData[T any](c echo.Context) (*T, error) {
	res := new(T)

	if err := c.Bind(res); err != nil {
		return nil, err
	}

	if err := c.Validate(res); err != nil {
		return nil, err
	}

	return res, nil
}

func getPublicKey(c echo.Context) identity.PublicKey {
	publicKey, ok := c.Get("publicKey").(identity.PublicKey)
	if !ok {
		panic(errors.New("could not get public key from context"))
	}

	return publicKey
}

func newEchoHTTPError(code int, message string, err *error) *echo.HTTPError {
	if err != nil {
		return echo.NewHTTPError(code, message).SetInternal(*err)
	}
	return echo.NewHTTPError(code, message)
}

func (h *Handler) Register(c echo.Context) error {
	publicKey := getPublicKey(c)

	data, err := validateData[api.RegisterData](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	err = h.Messaging.Register(c.Request().Context(), publicKey, data.PublicIdentityKeys)
	if err != nil {
		return newEchoHTTPError(http.StatusInternalServerError, "Could not register", &err)
	}

	if data.Name != "" {
		err = h.Directory.PutPeer(c.Request().Context(), api.Peer{PublicIdentityKey: publicKey, Name: data.Name})
		if err != nil {
			return newEchoHTTPError(http.StatusInternalServerError, "Could not register", &err)
		}
	}

	return c.NoContent(http.StatusOK)
}

func (h *Handler) ReceiveMessages(c echo.Context) error {
	publicKey := getPublicKey(c)

	messages, err := h.Messaging.ReceiveMessages(c.Request().Context(), publicKey)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return newEchoHTTPError(http.StatusNotFound, "Not registered", &err)
		}
		return newEchoHTTPError(http.StatusInternalServerError, "Could not receive messages", &err)
	}

	return c.JSON(http.StatusOK, messages)
}

func (h *Handler) SendMessages(c echo.Context) error {
	publicKey := getPublicKey(c)

	data, err := validateData[api.SendMessagesData](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	messages := append(data.Messages, api.SendMessage{ToPublicIdentityKey: publicKey, Data: []byte{}})

	destinations := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		destination := string(message.ToPublicIdentityKey)
		if _, ok := destinations[destination]; ok {
			return newEchoHTTPError(http.StatusBadRequest, "Duplicate message destination", nil)
		}
		destinations[destination] = struct{}{}
	}

	slices.SortFunc(messages, func(a, b api.SendMessage) int {
		return bytes.Compare(a.ToPublicIdentityKey, b.ToPublicIdentityKey)
	})

	for _, message := range messages {
		err = h.Messaging.SendMessage(c.Request().Context(), publicKey, message.ToPublicIdentityKey, message.Data, *data.Index)
		if err != nil {
			if errors.Is(err, services.ErrWrongMessageIndex) {
				return newEchoHTTPError(http.StatusConflict, "Wrong message index", &err)
			}
			return newEchoHTTPError(http.StatusInternalServerError, "Could not send message", &err)
		}
	}

	return c.NoContent(http.StatusOK)
}

type SearchStickersData struct {
	Emoji string `query:"emoji" validate:"required,max=16"`
}

// SearchStickers lists the caller's saved stickers for an emoji first, then
// the catalog's.
func (h *Handler) SearchStickers(c echo.Context) error {
	publicKey := getPublicKey(c)

	data, err := validateData[SearchStickersData](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	saved, err := h.SavedStickers.SavedStickers(c.Request().Context(), publicKey)
	if err != nil {
		return newEchoHTTPError(http.StatusInternalServerError, "Could not search stickers", &err)
	}

	saved = lo.Filter(saved, func(file api.StickerFile, _ int) bool {
		return file.Emoji == data.Emoji
	})
	files := lo.UniqBy(append(saved, h.Catalog.Search(data.Emoji)...), api.StickerFile.MediaID)

	return c.JSON(http.StatusOK, files)
}

type StickerPackData struct {
	ID int64 `param:"id" validate:"required"`
}

func (h *Handler) StickerPack(c echo.Context) error {
	data, err := validateData[StickerPackData](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	files, ok := h.Catalog.Pack(data.ID)
	if !ok {
		return newEchoHTTPError(http.StatusNotFound, "Sticker pack not found", nil)
	}

	return c.JSON(http.StatusOK, files)
}

func (h *Handler) SavedStickersList(c echo.Context) error {
	publicKey := getPublicKey(c)

	files, err := h.SavedStickers.SavedStickers(c.Request().Context(), publicKey)
	if err != nil {
		return newEchoHTTPError(http.StatusInternalServerError, "Could not get saved stickers", &err)
	}
	if files == nil {
		files = []api.StickerFile{}
	}

	return c.JSON(http.StatusOK, files)
}

func (h *Handler) AddSavedSticker(c echo.Context) error {
	publicKey := getPublicKey(c)

	data, err := validateData[api.StickerFile](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	err = h.SavedStickers.AddSavedSticker(c.Request().Context(), publicKey, *data)
	if err != nil {
		return newEchoHTTPError(http.StatusInternalServerError, "Could not save sticker", &err)
	}

	return c.NoContent(http.StatusOK)
}

type RemoveSavedStickerData struct {
	Namespace int32 `param:"namespace"`
	ID        int64 `param:"id" validate:"required"`
}

func (h *Handler) RemoveSavedSticker(c echo.Context) error {
	publicKey := getPublicKey(c)

	data, err := validateData[RemoveSavedStickerData](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	err = h.SavedStickers.RemoveSavedSticker(c.Request().Context(), publicKey, data.Namespace, data.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return newEchoHTTPError(http.StatusNotFound, "Sticker not saved", &err)
		}
		return newEchoHTTPError(http.StatusInternalServerError, "Could not remove sticker", &err)
	}

	return c.NoContent(http.StatusOK)
}

type SearchPeersData struct {
	Query string `query:"q" validate:"max=64"`
}

func (h *Handler) SearchPeers(c echo.Context) error {
	publicKey := getPublicKey(c)

	data, err := validateData[SearchPeersData](c)
	if err != nil {
		return fmt.Errorf("could not validate data: %w", err)
	}

	peers, err := h.Directory.Peers(c.Request().Context())
	if err != nil {
		return newEchoHTTPError(http.StatusInternalServerError, "Could not search peers", &err)
	}

	query := strings.ToLower(data.Query)
	found := lo.Filter(peers, func(peer api.Peer, _ int) bool {
		return !bytes.Equal(peer.PublicIdentityKey, publicKey) && strings.Contains(strings.ToLower(peer.Name), query)
	})
	if len(found) > maxPeerResults {
		found = found[:maxPeerResults]
	}

	return c.JSON(http.StatusOK, found)
}
