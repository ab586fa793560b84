package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	savedStickersBucket = "SAVED_STICKERS"
	peersBucket         = "PEERS"
	fetchBatch          = 20
)

var (
	ErrWrongMessageIndex = errors.New("wrong message index")
	ErrNotFound          = errors.New("not found")
)

type NATSService struct {
	nc            *nats.Conn
	js            jetstream.JetStream
	savedStickers jetstream.KeyValue
	peers         jetstream.KeyValue
}

func NewNATSService(ctx context.Context, natsURL string) (*NATSService, error) {
	nc, err := nats.Connect(natsURL, nats.Name("incognitostickers"), nats.ReconnectWait(time.Second), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("could not connect to NATS JetStream: %w", err)
	}

	savedStickers, err := keyValue(ctx, js, savedStickersBucket)
	if err != nil {
		nc.Close()
		return nil, err
	}

	peers, err := keyValue(ctx, js, peersBucket)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSService{
		nc:            nc,
		js:            js,
		savedStickers: savedStickers,
		peers:         peers,
	}, nil
}

func keyValue(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("could not get bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("could not create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func streamName(publicIdentityKey []byte) string {
	return fmt.Sprintf("MESSAGES_%x", publicIdentityKey)
}

func (s *NATSService) Register(ctx context.Context, publicIdentityKey []byte, identityKeys [][]byte) error {
	subjects := make([]string, 0, len(identityKeys)+1)
	for _, identityKey := range append(identityKeys, publicIdentityKey) {
		subjects = append(subjects, fmt.Sprintf("MESSAGES.%x.%x", identityKey, publicIdentityKey))
	}

	stream, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(publicIdentityKey),
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("could not create stream: %w", err)
	}

	_, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:      streamName(publicIdentityKey),
		Durable:   streamName(publicIdentityKey),
		AckPolicy: jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("could not create consumer: %w", err)
	}

	return nil
}

func (s *NATSService) ReceiveMessages(ctx context.Context, publicIdentityKey []byte) ([]api.Message, error) {
	consumer, err := s.js.Consumer(ctx, streamName(publicIdentityKey), streamName(publicIdentityKey))
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) || errors.Is(err, jetstream.ErrConsumerNotFound) {
			return nil, fmt.Errorf("could not get consumer: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("could not get consumer: %w", err)
	}

	batch, err := consumer.FetchNoWait(fetchBatch)
	if err != nil {
		return nil, fmt.Errorf("could not fetch messages: %w", err)
	}

	messages := make([]api.Message, 0, fetchBatch)
	for msg := range batch.Messages() {
		from, err := hex.DecodeString(strings.Split(msg.Subject(), ".")[1])
		if err != nil {
			return nil, fmt.Errorf("could not decode sender: %w", err)
		}

		metadata, err := msg.Metadata()
		if err != nil {
			return nil, fmt.Errorf("could not get metadata: %w", err)
		}

		messages = append(messages, api.Message{
			FromPublicIdentityKey: from,
			Data:                  msg.Data(),
			CreatedAt:             metadata.Timestamp.Unix(),
		})

		if err := msg.Ack(); err != nil {
			return nil, fmt.Errorf("could not ack message: %w", err)
		}
	}
	if err := batch.Error(); err != nil {
		return nil, fmt.Errorf("could not fetch messages: %w", err)
	}

	return messages, nil
}

func (s *NATSService) SendMessage(ctx context.Context, fromPublicIdentityKey []byte, toPublicIdentityKey []byte, data []byte, messageIndex uint64) error {
	subject := fmt.Sprintf("MESSAGES.%x.%x", fromPublicIdentityKey, toPublicIdentityKey)
	_, err := s.js.Publish(ctx, subject, data, jetstream.WithExpectLastSequence(messageIndex))
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			return ErrWrongMessageIndex
		}
		return fmt.Errorf("could not publish message: %w", err)
	}

	return nil
}

func savedStickerKey(owner []byte, namespace int32, id int64) string {
	return fmt.Sprintf("%x.%d_%d", owner, namespace, id)
}

// collect reads the current values of every key matching filter, in the order
// they were last written.
func collect[T any](ctx context.Context, kv jetstream.KeyValue, filter string) ([]T, error) {
	watcher, err := kv.Watch(ctx, filter, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("could not watch %s: %w", filter, err)
	}
	defer watcher.Stop()

	var values []T
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case entry, ok := <-watcher.Updates():
			if !ok || entry == nil {
				return values, nil
			}

			var value T
			if err := json.Unmarshal(entry.Value(), &value); err != nil {
				return nil, fmt.Errorf("could not decode %s: %w", entry.Key(), err)
			}
			values = append(values, value)
		}
	}
}

func (s *NATSService) SavedStickers(ctx context.Context, owner []byte) ([]api.StickerFile, error) {
	return collect[api.StickerFile](ctx, s.savedStickers, fmt.Sprintf("%x.*", owner))
}

func (s *NATSService) AddSavedSticker(ctx context.Context, owner []byte, file api.StickerFile) error {
	value, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("could not encode sticker: %w", err)
	}

	if _, err := s.savedStickers.Put(ctx, savedStickerKey(owner, file.Namespace, file.ID), value); err != nil {
		return fmt.Errorf("could not save sticker: %w", err)
	}
	return nil
}

func (s *NATSService) RemoveSavedSticker(ctx context.Context, owner []byte, namespace int32, id int64) error {
	key := savedStickerKey(owner, namespace, id)
	if _, err := s.savedStickers.Get(ctx, key); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("could not remove sticker: %w", ErrNotFound)
		}
		return fmt.Errorf("could not remove sticker: %w", err)
	}

	if err := s.savedStickers.Delete(ctx, key); err != nil {
		return fmt.Errorf("could not remove sticker: %w", err)
	}
	return nil
}

func (s *NATSService) PutPeer(ctx context.Context, peer api.Peer) error {
	value, err := json.Marshal(peer)
	if err != nil {
		return fmt.Errorf("could not encode peer: %w", err)
	}

	if _, err := s.peers.Put(ctx, hex.EncodeToString(peer.PublicIdentityKey), value); err != nil {
		return fmt.Errorf("could not store peer: %w", err)
	}
	return nil
}

func (s *NATSService) Peers(ctx context.Context) ([]api.Peer, error) {
	return collect[api.Peer](ctx, s.peers, ">")
}

func (s *NATSService) Close() {
	s.nc.Close()
}
