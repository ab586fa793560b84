package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JRI98/incognitostickers/client/database"
	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/internal/secretbox"
	"github.com/JRI98/incognitostickers/internal/stickers"
)

// sealStickerMessage encrypts a sticker message for the chat's peer and
// prefixes it with the chat identity's signature of the ciphertext.
func sealStickerMessage(chat database.Chat, file api.StickerFile) ([]byte, error) {
	secretKey, err := identity.SharedSecret(chat.MyECDHPrivateKey, chat.PeerECDHPublicKey)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(api.StickerMessage{Sticker: file})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sticker message: %w", err)
	}

	encryptedPayload, err := secretbox.Seal(payload, secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	signature := identity.Sign(chat.PrivateIdentityKey, encryptedPayload)
	return append(signature, encryptedPayload...), nil
}

func openStickerMessage(chat database.Chat, data []byte) (api.StickerMessage, error) {
	if len(data) < identity.SignatureSize {
		return api.StickerMessage{}, fmt.Errorf("message too short: %d bytes", len(data))
	}

	signature := data[:identity.SignatureSize]
	encryptedPayload := data[identity.SignatureSize:]

	if !identity.Verify(chat.PeerPublicIdentityKey, encryptedPayload, signature) {
		return api.StickerMessage{}, fmt.Errorf("signature invalid for public identity key '%x'", chat.PeerPublicIdentityKey)
	}

	secretKey, err := identity.SharedSecret(chat.MyECDHPrivateKey, chat.PeerECDHPublicKey)
	if err != nil {
		return api.StickerMessage{}, err
	}

	payload, err := secretbox.Open(encryptedPayload, secretKey)
	if err != nil {
		return api.StickerMessage{}, fmt.Errorf("failed to decrypt payload: %w", err)
	}

	var message api.StickerMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return api.StickerMessage{}, fmt.Errorf("failed to unmarshal sticker message: %w", err)
	}
	return message, nil
}

func describeSticker(file api.StickerFile) string {
	return fmt.Sprintf("[sticker %s %s]", file.Emoji, file.MediaID())
}

type messenger interface {
	SendMessages(ctx context.Context, data api.SendMessagesData) error
	ReceiveMessages(ctx context.Context) ([]api.Message, error)
}

// chatSession sends and receives the sticker messages of one secret chat.
type chatSession struct {
	database *database.Database
	client   messenger
	chat     database.Chat
	now      func() time.Time
}

func newChatSession(db *database.Database, client *api.Client, chat database.Chat) *chatSession {
	return &chatSession{
		database: db,
		client:   client.WithKey(chat.PrivateIdentityKey),
		chat:     chat,
		now:      time.Now,
	}
}

func (session *chatSession) fetchLatestMessages(ctx context.Context) error {
	latestMessages, err := session.client.ReceiveMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	myPublicIdentityKey := identity.Public(session.chat.PrivateIdentityKey)
	for _, message := range latestMessages {
		if bytes.Equal(message.FromPublicIdentityKey, myPublicIdentityKey) {
			continue
		}

		stickerMessage, err := openStickerMessage(session.chat, message.Data)
		if err != nil {
			return err
		}

		messageSequenceNumber, err := session.database.GetNextSequenceNumber(ctx, session.chat.ChatID)
		if err != nil {
			return fmt.Errorf("failed to get next sequence number: %w", err)
		}

		err = session.database.CreateMessage(ctx, session.chat.ChatID, database.Message{
			SequenceNumber:    messageSequenceNumber,
			PublicIdentityKey: message.FromPublicIdentityKey,
			Content:           describeSticker(stickerMessage.Sticker),
			CreatedAt:         time.Unix(message.CreatedAt, 0),
		})
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
	}

	return nil
}

// SendSticker delivers file to the peer, catching up on missed messages and
// retrying whenever the server reports a stale index.
func (session *chatSession) SendSticker(ctx context.Context, file stickers.File) error {
	stickerFile := api.FromFile(file)

	data, err := sealStickerMessage(session.chat, stickerFile)
	if err != nil {
		return err
	}

	for {
		index, err := session.database.GetNextSequenceNumber(ctx, session.chat.ChatID)
		if err != nil {
			return fmt.Errorf("failed to get next sequence number: %w", err)
		}

		messageIndex := uint64(index)
		err = session.client.SendMessages(ctx, api.SendMessagesData{
			Messages: []api.SendMessage{{ToPublicIdentityKey: session.chat.PeerPublicIdentityKey, Data: data}},
			Index:    &messageIndex,
		})
		if errors.Is(err, api.ErrOutdatedIndex) {
			if err := session.fetchLatestMessages(ctx); err != nil {
				return fmt.Errorf("failed to fetch latest messages: %w", err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to send messages: %w", err)
		}

		err = session.database.CreateMessage(ctx, session.chat.ChatID, database.Message{
			SequenceNumber:    index,
			PublicIdentityKey: identity.Public(session.chat.PrivateIdentityKey),
			Content:           describeSticker(stickerFile),
			CreatedAt:         session.now(),
		})
		if err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		return nil
	}
}
