package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/JRI98/incognitostickers/internal/identity"
)

var ErrOutdatedIndex = errors.New("outdated message index")

type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Message)
}

// Client talks to the server on behalf of one identity key.
type Client struct {
	baseURL    string
	httpClient *http.Client
	privateKey identity.PrivateKey
}

func NewClient(baseURL string, privateKey identity.PrivateKey, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, privateKey: privateKey}
}

// WithKey returns a client for the same server signing with another key.
func (c *Client) WithKey(privateKey identity.PrivateKey) *Client {
	return &Client{baseURL: c.baseURL, httpClient: c.httpClient, privateKey: privateKey}
}

// AuthorizationHeader is base64(public key || signature of body).
func AuthorizationHeader(privateKey identity.PrivateKey, body []byte) string {
	publicKey := identity.Public(privateKey)
	signature := identity.Sign(privateKey, body)

	payload := make([]byte, 0, len(publicKey)+len(signature))
	payload = append(payload, publicKey...)
	payload = append(payload, signature...)

	return base64.StdEncoding.EncodeToString(payload)
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, in any, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", AuthorizationHeader(c.privateKey, body))

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if response.StatusCode == http.StatusConflict {
		return ErrOutdatedIndex
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &StatusError{Code: response.StatusCode, Message: string(responseBody)}
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}
	return nil
}

func (c *Client) Register(ctx context.Context, data RegisterData) error {
	return c.do(ctx, http.MethodPost, "/api/register", nil, data, nil)
}

func (c *Client) SearchStickers(ctx context.Context, emoji string) ([]StickerFile, error) {
	var files []StickerFile
	err := c.do(ctx, http.MethodGet, "/api/stickers", url.Values{"emoji": {emoji}}, nil, &files)
	if err != nil {
		return nil, fmt.Errorf("could not search stickers: %w", err)
	}
	return files, nil
}

func (c *Client) StickerPack(ctx context.Context, packID int64) ([]StickerFile, error) {
	var files []StickerFile
	err := c.do(ctx, http.MethodGet, "/api/stickers/packs/"+strconv.FormatInt(packID, 10), nil, nil, &files)
	if err != nil {
		return nil, fmt.Errorf("could not get sticker pack: %w", err)
	}
	return files, nil
}

func (c *Client) SavedStickers(ctx context.Context) ([]StickerFile, error) {
	var files []StickerFile
	err := c.do(ctx, http.MethodGet, "/api/stickers/saved", nil, nil, &files)
	if err != nil {
		return nil, fmt.Errorf("could not get saved stickers: %w", err)
	}
	return files, nil
}

func (c *Client) AddSaved(ctx context.Context, file StickerFile) error {
	return c.do(ctx, http.MethodPost, "/api/stickers/saved", nil, file, nil)
}

func (c *Client) RemoveSaved(ctx context.Context, namespace int32, id int64) error {
	path := fmt.Sprintf("/api/stickers/saved/%d/%d", namespace, id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) SearchPeers(ctx context.Context, query string) ([]Peer, error) {
	var peers []Peer
	err := c.do(ctx, http.MethodGet, "/api/peers", url.Values{"q": {query}}, nil, &peers)
	if err != nil {
		return nil, fmt.Errorf("could not search peers: %w", err)
	}
	return peers, nil
}

func (c *Client) SendMessages(ctx context.Context, data SendMessagesData) error {
	return c.do(ctx, http.MethodPost, "/api/messages", nil, data, nil)
}

func (c *Client) ReceiveMessages(ctx context.Context) ([]Message, error) {
	var messages []Message
	if err := c.do(ctx, http.MethodGet, "/api/messages", nil, nil, &messages); err != nil {
		return nil, fmt.Errorf("could not receive messages: %w", err)
	}
	return messages, nil
}
