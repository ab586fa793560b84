package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/contacts"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/internal/stickers"
)

var ErrNotFound = errors.New("not found")

func (database *Database) CreatePassword(ctx context.Context, salt []byte) error {
	_, err := database.q.ExecContext(ctx, `INSERT INTO password (id, salt) VALUES (0, ?)`, salt)
	if err != nil {
		return fmt.Errorf("failed to create password: %w", err)
	}
	return nil
}

// GetPassword returns the password salt, or sql.ErrNoRows on first use.
func (database *Database) GetPassword(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := database.q.QueryRowContext(ctx, `SELECT salt FROM password WHERE id = 0`).Scan(&salt)
	return salt, err
}

type Account struct {
	PrivateIdentityKey identity.PrivateKey
	Name               string
}

func (database *Database) CreateAccount(ctx context.Context, account Account) error {
	sealed, err := database.sealAll(account.PrivateIdentityKey, []byte(account.Name))
	if err != nil {
		return fmt.Errorf("failed to encrypt account: %w", err)
	}

	_, err = database.q.ExecContext(ctx, `INSERT INTO account (id, encrypted_private_identity_key, encrypted_name) VALUES (0, ?, ?)`, sealed[0], sealed[1])
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (database *Database) GetAccount(ctx context.Context) (Account, error) {
	var encryptedKey, encryptedName []byte
	err := database.q.QueryRowContext(ctx, `SELECT encrypted_private_identity_key, encrypted_name FROM account WHERE id = 0`).Scan(&encryptedKey, &encryptedName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	opened, err := database.openAll(encryptedKey, encryptedName)
	if err != nil {
		return Account{}, fmt.Errorf("failed to decrypt account: %w", err)
	}

	privateKey, err := identity.PrivateKeyFromBytes(opened[0])
	if err != nil {
		return Account{}, fmt.Errorf("failed to parse account key: %w", err)
	}

	return Account{PrivateIdentityKey: privateKey, Name: string(opened[1])}, nil
}

func (database *Database) AddContact(ctx context.Context, publicIdentityKey identity.PublicKey, name string) error {
	existing, err := database.allContacts(ctx)
	if err != nil {
		return err
	}
	for _, contact := range existing {
		if bytes.Equal(contact.PublicIdentityKey, publicIdentityKey) {
			return nil
		}
	}

	sealed, err := database.sealAll(publicIdentityKey, []byte(name))
	if err != nil {
		return fmt.Errorf("failed to encrypt contact: %w", err)
	}

	_, err = database.q.ExecContext(ctx, `INSERT INTO contacts (encrypted_public_identity_key, encrypted_name) VALUES (?, ?)`, sealed[0], sealed[1])
	if err != nil {
		return fmt.Errorf("failed to add contact: %w", err)
	}
	return nil
}

func (database *Database) allContacts(ctx context.Context) ([]contacts.Peer, error) {
	rows, err := database.q.QueryContext(ctx, `SELECT encrypted_public_identity_key, encrypted_name FROM contacts ORDER BY contact_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	defer rows.Close()

	var peers []contacts.Peer
	for rows.Next() {
		var encryptedKey, encryptedName []byte
		if err := rows.Scan(&encryptedKey, &encryptedName); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}

		opened, err := database.openAll(encryptedKey, encryptedName)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt contact: %w", err)
		}

		peers = append(peers, contacts.Peer{
			ID:                contacts.PeerID(hex.EncodeToString(opened[0])),
			Name:              string(opened[1]),
			PublicIdentityKey: opened[0],
			Source:            contacts.CloudContacts,
		})
	}
	return peers, rows.Err()
}

// SearchContacts returns the contacts whose name contains query, ignoring case.
func (database *Database) SearchContacts(ctx context.Context, query string) ([]contacts.Peer, error) {
	all, err := database.allContacts(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	found := make([]contacts.Peer, 0, len(all))
	for _, peer := range all {
		if strings.Contains(strings.ToLower(peer.Name), query) {
			found = append(found, peer)
		}
	}
	return found, nil
}

// Chat is one secret chat. PeerAccountPublicKey is the peer's directory
// identity; PeerPublicIdentityKey is the key the peer registered for this chat
// only.
type Chat struct {
	ChatID                int64
	Title                 string
	PrivateIdentityKey    identity.PrivateKey
	PeerAccountPublicKey  identity.PublicKey
	PeerPublicIdentityKey identity.PublicKey
	PeerECDHPublicKey     *identity.ECDHPublicKey
	MyECDHPrivateKey      *identity.ECDHPrivateKey
}

const chatColumns = `encrypted_private_identity_key, encrypted_title, encrypted_peer_account_public_key,
	encrypted_peer_public_identity_key, encrypted_peer_ecdh_public_key, encrypted_my_ecdh_private_key`

func (database *Database) CreateChat(ctx context.Context, chat Chat) (int64, error) {
	sealed, err := database.sealAll(
		chat.PrivateIdentityKey,
		[]byte(chat.Title),
		chat.PeerAccountPublicKey,
		chat.PeerPublicIdentityKey,
		chat.PeerECDHPublicKey.Bytes(),
		chat.MyECDHPrivateKey.Bytes(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to encrypt chat: %w", err)
	}

	result, err := database.q.ExecContext(ctx, `INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		sealed[0], sealed[1], sealed[2], sealed[3], sealed[4], sealed[5])
	if err != nil {
		return 0, fmt.Errorf("failed to create chat: %w", err)
	}

	return result.LastInsertId()
}

func (database *Database) GetChats(ctx context.Context) ([]Chat, error) {
	rows, err := database.q.QueryContext(ctx, `SELECT chat_id, `+chatColumns+` FROM chats ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chatID int64
		var encrypted [6][]byte
		if err := rows.Scan(&chatID, &encrypted[0], &encrypted[1], &encrypted[2], &encrypted[3], &encrypted[4], &encrypted[5]); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}

		chat, err := database.decodeChat(chatID, encrypted)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (database *Database) decodeChat(chatID int64, encrypted [6][]byte) (Chat, error) {
	opened, err := database.openAll(encrypted[:]...)
	if err != nil {
		return Chat{}, fmt.Errorf("failed to decrypt chat: %w", err)
	}

	privateKey, err := identity.PrivateKeyFromBytes(opened[0])
	if err != nil {
		return Chat{}, fmt.Errorf("failed to parse chat identity key: %w", err)
	}

	peerAccountKey, err := identity.PublicKeyFromBytes(opened[2])
	if err != nil {
		return Chat{}, fmt.Errorf("failed to parse peer account key: %w", err)
	}

	peerECDHPublicKey, err := identity.ECDHPublicKeyFromBytes(opened[4])
	if err != nil {
		return Chat{}, fmt.Errorf("failed to parse peer ecdh public key: %w", err)
	}

	myECDHPrivateKey, err := identity.ECDHPrivateKeyFromBytes(opened[5])
	if err != nil {
		return Chat{}, fmt.Errorf("failed to parse my ecdh private key: %w", err)
	}

	return Chat{
		ChatID:                chatID,
		Title:                 string(opened[1]),
		PrivateIdentityKey:    privateKey,
		PeerAccountPublicKey:  peerAccountKey,
		PeerPublicIdentityKey: opened[3],
		PeerECDHPublicKey:     peerECDHPublicKey,
		MyECDHPrivateKey:      myECDHPrivateKey,
	}, nil
}

func (database *Database) GetChat(ctx context.Context, chatID int64) (Chat, error) {
	var encrypted [6][]byte
	err := database.q.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE chat_id = ?`, chatID).
		Scan(&encrypted[0], &encrypted[1], &encrypted[2], &encrypted[3], &encrypted[4], &encrypted[5])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, ErrNotFound
		}
		return Chat{}, fmt.Errorf("failed to get chat: %w", err)
	}
	return database.decodeChat(chatID, encrypted)
}

// GetChatByPeer finds the secret chat with the peer whose account key is
// accountPublicKey.
func (database *Database) GetChatByPeer(ctx context.Context, accountPublicKey identity.PublicKey) (Chat, error) {
	chats, err := database.GetChats(ctx)
	if err != nil {
		return Chat{}, err
	}
	for _, chat := range chats {
		if bytes.Equal(chat.PeerAccountPublicKey, accountPublicKey) {
			return chat, nil
		}
	}
	return Chat{}, ErrNotFound
}

type Message struct {
	SequenceNumber    int64
	PublicIdentityKey identity.PublicKey
	Content           string
	CreatedAt         time.Time
}

func (database *Database) CreateMessage(ctx context.Context, chatID int64, message Message) error {
	createdAt, err := message.CreatedAt.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal created at: %w", err)
	}

	sealed, err := database.sealAll(message.PublicIdentityKey, []byte(message.Content), createdAt)
	if err != nil {
		return fmt.Errorf("failed to encrypt message: %w", err)
	}

	_, err = database.q.ExecContext(ctx, `INSERT INTO messages (
		chat_id, sequence_number, encrypted_public_identity_key, encrypted_content, encrypted_created_at
	) VALUES (?, ?, ?, ?, ?)`, chatID, message.SequenceNumber, sealed[0], sealed[1], sealed[2])
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (database *Database) GetMessages(ctx context.Context, chatID int64) ([]Message, error) {
	rows, err := database.q.QueryContext(ctx, `SELECT sequence_number, encrypted_public_identity_key, encrypted_content, encrypted_created_at
		FROM messages WHERE chat_id = ? ORDER BY sequence_number`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var sequenceNumber int64
		var encryptedKey, encryptedContent, encryptedCreatedAt []byte
		if err := rows.Scan(&sequenceNumber, &encryptedKey, &encryptedContent, &encryptedCreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		opened, err := database.openAll(encryptedKey, encryptedContent, encryptedCreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt message: %w", err)
		}

		var createdAt time.Time
		if err := createdAt.UnmarshalBinary(opened[2]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal created at: %w", err)
		}

		messages = append(messages, Message{
			SequenceNumber:    sequenceNumber,
			PublicIdentityKey: opened[0],
			Content:           string(opened[1]),
			CreatedAt:         createdAt,
		})
	}
	return messages, rows.Err()
}

func (database *Database) GetNextSequenceNumber(ctx context.Context, chatID int64) (int64, error) {
	var last sql.NullInt64
	err := database.q.QueryRowContext(ctx, `SELECT MAX(sequence_number) FROM messages WHERE chat_id = ?`, chatID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("failed to get next sequence number: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return last.Int64 + 1, nil
}

func (database *Database) SavedStickers(ctx context.Context) ([]api.StickerFile, error) {
	rows, err := database.q.QueryContext(ctx, `SELECT encrypted_file FROM saved_stickers ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to get saved stickers: %w", err)
	}
	defer rows.Close()

	var files []api.StickerFile
	for rows.Next() {
		var encrypted []byte
		if err := rows.Scan(&encrypted); err != nil {
			return nil, fmt.Errorf("failed to scan saved sticker: %w", err)
		}

		plaintext, err := database.open(encrypted)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt saved sticker: %w", err)
		}

		var file api.StickerFile
		if err := json.Unmarshal(plaintext, &file); err != nil {
			return nil, fmt.Errorf("failed to decode saved sticker: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (database *Database) insertSavedSticker(ctx context.Context, file api.StickerFile) error {
	plaintext, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode saved sticker: %w", err)
	}

	encrypted, err := database.seal(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt saved sticker: %w", err)
	}

	_, err = database.q.ExecContext(ctx, `INSERT INTO saved_stickers (encrypted_file) VALUES (?)`, encrypted)
	if err != nil {
		return fmt.Errorf("failed to insert saved sticker: %w", err)
	}
	return nil
}

// ReplaceSavedStickers swaps the local cache for the server's list. It must be
// called inside WithTx.
func (database *Database) ReplaceSavedStickers(ctx context.Context, files []api.StickerFile) error {
	if _, err := database.q.ExecContext(ctx, `DELETE FROM saved_stickers`); err != nil {
		return fmt.Errorf("failed to clear saved stickers: %w", err)
	}
	for _, file := range files {
		if err := database.insertSavedSticker(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

func (database *Database) AddSavedSticker(ctx context.Context, file api.StickerFile) error {
	saved, err := database.IsSavedSticker(ctx, file.MediaID())
	if err != nil || saved {
		return err
	}
	return database.insertSavedSticker(ctx, file)
}

func (database *Database) IsSavedSticker(ctx context.Context, id stickers.MediaID) (bool, error) {
	files, err := database.SavedStickers(ctx)
	if err != nil {
		return false, err
	}
	for _, file := range files {
		if file.MediaID() == id {
			return true, nil
		}
	}
	return false, nil
}

func (database *Database) RemoveSavedSticker(ctx context.Context, id stickers.MediaID) error {
	files, err := database.SavedStickers(ctx)
	if err != nil {
		return err
	}

	kept := make([]api.StickerFile, 0, len(files))
	for _, file := range files {
		if file.MediaID() != id {
			kept = append(kept, file)
		}
	}
	if len(kept) == len(files) {
		return nil
	}
	return database.ReplaceSavedStickers(ctx, kept)
}
