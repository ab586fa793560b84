package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/internal/secretbox"
	"github.com/JRI98/incognitostickers/internal/stickers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	salt, err := secretbox.NewSalt()
	require.NoError(t, err)
	key, err := secretbox.DeriveKey([]byte("hunter2"), salt)
	require.NoError(t, err)
	require.NoError(t, db.CreatePassword(context.Background(), salt))
	require.NoError(t, db.SetEncryptionKey(key))
	return db
}

func TestLockedDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetPassword(context.Background())
	require.Error(t, err)

	err = db.AddContact(context.Background(), identity.PublicKey(make([]byte, identity.PublicKeySize)), "Bob")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestAccount(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)

	_, err := db.GetAccount(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, privateKey, err := identity.Generate()
	require.NoError(t, err)
	require.NoError(t, db.CreateAccount(ctx, Account{PrivateIdentityKey: privateKey, Name: "Alice"}))

	account, err := db.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", account.Name)
	assert.Equal(t, privateKey, account.PrivateIdentityKey)
}

func TestSearchContacts(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)

	for _, name := range []string{"Alice", "Bob", "Malice"} {
		publicKey, _, err := identity.Generate()
		require.NoError(t, err)
		require.NoError(t, db.AddContact(ctx, publicKey, name))
		require.NoError(t, db.AddContact(ctx, publicKey, name))
	}

	all, err := db.SearchContacts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := db.SearchContacts(ctx, "ALI")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Alice", found[0].Name)
	assert.Equal(t, "Malice", found[1].Name)
}

func TestChatsAndMessages(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)

	_, privateKey, err := identity.Generate()
	require.NoError(t, err)
	peerAccountKey, _, err := identity.Generate()
	require.NoError(t, err)
	peerPublicKey, _, err := identity.Generate()
	require.NoError(t, err)
	myECDH, err := identity.GenerateECDH()
	require.NoError(t, err)
	peerECDH, err := identity.GenerateECDH()
	require.NoError(t, err)

	chatID, err := db.CreateChat(ctx, Chat{
		Title:                 "Bob",
		PrivateIdentityKey:    privateKey,
		PeerAccountPublicKey:  peerAccountKey,
		PeerPublicIdentityKey: peerPublicKey,
		PeerECDHPublicKey:     peerECDH.PublicKey(),
		MyECDHPrivateKey:      myECDH,
	})
	require.NoError(t, err)

	chat, err := db.GetChatByPeer(ctx, peerAccountKey)
	require.NoError(t, err)
	assert.Equal(t, chatID, chat.ChatID)
	assert.Equal(t, "Bob", chat.Title)
	assert.True(t, chat.PeerECDHPublicKey.Equal(peerECDH.PublicKey()))

	byID, err := db.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, peerPublicKey, byID.PeerPublicIdentityKey)
	assert.Equal(t, peerAccountKey, byID.PeerAccountPublicKey)

	_, err = db.GetChatByPeer(ctx, peerPublicKey)
	assert.ErrorIs(t, err, ErrNotFound)

	next, err := db.GetNextSequenceNumber(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), next)

	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateMessage(ctx, chatID, Message{
		SequenceNumber:    next,
		PublicIdentityKey: peerPublicKey,
		Content:           "hello",
		CreatedAt:         createdAt,
	}))

	next, err = db.GetNextSequenceNumber(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	messages, err := db.GetMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
	assert.True(t, createdAt.Equal(messages[0].CreatedAt))
}

func TestSavedStickers(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)

	a := api.StickerFile{ID: 1, Emoji: "😀"}
	b := api.StickerFile{ID: 2, Emoji: "😢", Pack: &api.StickerPack{ID: 7}}

	require.NoError(t, db.AddSavedSticker(ctx, a))
	require.NoError(t, db.AddSavedSticker(ctx, b))
	require.NoError(t, db.AddSavedSticker(ctx, a))

	files, err := db.SavedStickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []api.StickerFile{a, b}, files)

	saved, err := db.IsSavedSticker(ctx, stickers.MediaID{ID: 2})
	require.NoError(t, err)
	assert.True(t, saved)

	require.NoError(t, db.WithTx(ctx, func(tx *Database) error {
		return tx.RemoveSavedSticker(ctx, stickers.MediaID{ID: 1})
	}))

	files, err = db.SavedStickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []api.StickerFile{b}, files)
}
