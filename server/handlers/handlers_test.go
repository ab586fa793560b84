package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JRI98/incognitostickers/internal/api"
	"github.com/JRI98/incognitostickers/internal/identity"
	"github.com/JRI98/incognitostickers/server/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to    []byte
	index uint64
}

type fakeMessaging struct {
	registered map[string][][]byte
	sent       []sent
	lastIndex  uint64
}

func (m *fakeMessaging) Register(_ context.Context, publicIdentityKey []byte, identityKeys [][]byte) error {
	m.registered[string(publicIdentityKey)] = identityKeys
	return nil
}

func (m *fakeMessaging) ReceiveMessages(_ context.Context, publicIdentityKey []byte) ([]api.Message, error) {
	if _, ok := m.registered[string(publicIdentityKey)]; !ok {
		return nil, services.ErrNotFound
	}
	return []api.Message{{FromPublicIdentityKey: []byte{1}, Data: []byte("hi")}}, nil
}

func (m *fakeMessaging) SendMessage(_ context.Context, _ []byte, to []byte, _ []byte, messageIndex uint64) error {
	if messageIndex != m.lastIndex {
		return services.ErrWrongMessageIndex
	}
	m.sent = append(m.sent, sent{to: to, index: messageIndex})
	return nil
}

type fakeSaved struct {
	saved map[string][]api.StickerFile
}

func (s *fakeSaved) SavedStickers(_ context.Context, owner []byte) ([]api.StickerFile, error) {
	return s.saved[string(owner)], nil
}

func (s *fakeSaved) AddSavedSticker(_ context.Context, owner []byte, file api.StickerFile) error {
	s.saved[string(owner)] = append(s.saved[string(owner)], file)
	return nil
}

func (s *fakeSaved) RemoveSavedSticker(_ context.Context, owner []byte, namespace int32, id int64) error {
	files := s.saved[string(owner)]
	for i, file := range files {
		if file.Namespace == namespace && file.ID == id {
			s.saved[string(owner)] = append(files[:i], files[i+1:]...)
			return nil
		}
	}
	return services.ErrNotFound
}

type fakeDirectory struct {
	peers []api.Peer
}

func (d *fakeDirectory) PutPeer(_ context.Context, peer api.Peer) error {
	d.peers = append(d.peers, peer)
	return nil
}

func (d *fakeDirectory) Peers(context.Context) ([]api.Peer, error) {
	return d.peers, nil
}

const catalogJSON = `{"packs": [{"id": 1, "access_hash": 2, "stickers": [
  {"id": 100, "emoji": "😀"}, {"id": 101, "emoji": "😀"}, {"id": 102, "emoji": "😢"}
]}]}`

type testServer struct {
	e          *echo.Echo
	messaging  *fakeMessaging
	saved      *fakeSaved
	directory  *fakeDirectory
	privateKey identity.PrivateKey
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog, err := services.ParseCatalog([]byte(catalogJSON))
	require.NoError(t, err)

	_, privateKey, err := identity.Generate()
	require.NoError(t, err)

	s := &testServer{
		e:          echo.New(),
		messaging:  &fakeMessaging{registered: map[string][][]byte{}},
		saved:      &fakeSaved{saved: map[string][]api.StickerFile{}},
		directory:  &fakeDirectory{},
		privateKey: privateKey,
	}
	s.e.Validator = NewValidator()
	s.e.HTTPErrorHandler = HTTPErrorHandler

	h := &Handler{Messaging: s.messaging, SavedStickers: s.saved, Directory: s.directory, Catalog: catalog}
	h.Routes(s.e)
	return s
}

func (s *testServer) do(t *testing.T, method string, target string, in any) *httptest.ResponseRecorder {
	t.Helper()

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if in != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, api.AuthorizationHeader(s.privateKey, body))

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader([]byte(`{"public_identity_keys":[]}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, api.AuthorizationHeader(s.privateKey, []byte("other body")))
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stickers?emoji=x", nil)
	req.Header.Set(echo.HeaderAuthorization, "not base64!")
	rec = httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAddsDirectoryEntry(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/register", api.RegisterData{Name: "Alice", PublicIdentityKeys: [][]byte{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.messaging.registered, 1)
	require.Len(t, s.directory.peers, 1)
	assert.Equal(t, "Alice", s.directory.peers[0].Name)

	rec = s.do(t, http.MethodPost, "/api/register", api.RegisterData{PublicIdentityKeys: [][]byte{{1}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.directory.peers, 1)
}

func TestSearchStickersSavedFirst(t *testing.T) {
	s := newTestServer(t)
	owner := string(identity.Public(s.privateKey))
	s.saved.saved[owner] = []api.StickerFile{
		{ID: 101, Emoji: "😀"},
		{ID: 500, Emoji: "😀"},
		{ID: 600, Emoji: "🐶"},
	}

	rec := s.do(t, http.MethodGet, "/api/stickers?emoji=%F0%9F%98%80", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var files []api.StickerFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))

	ids := make([]int64, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []int64{101, 500, 100}, ids)

	rec = s.do(t, http.MethodGet, "/api/stickers", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSavedStickers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/stickers/saved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/stickers/saved", api.StickerFile{Namespace: 0, ID: 100, Emoji: "😀"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/stickers/saved", api.StickerFile{Emoji: "😀"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/stickers/saved/0/100", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/stickers/saved/0/100", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStickerPack(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/stickers/packs/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []api.StickerFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	assert.Len(t, files, 3)

	rec = s.do(t, http.MethodGet, "/api/stickers/packs/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchPeers(t *testing.T) {
	s := newTestServer(t)
	s.directory.peers = []api.Peer{
		{PublicIdentityKey: []byte{1}, Name: "Alice"},
		{PublicIdentityKey: []byte{2}, Name: "Bob"},
		{PublicIdentityKey: identity.Public(s.privateKey), Name: "Alicia (me)"},
	}

	rec := s.do(t, http.MethodGet, "/api/peers?q=ali", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var peers []api.Peer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &peers))
	require.Len(t, peers, 1)
	assert.Equal(t, "Alice", peers[0].Name)
}

func TestSendMessages(t *testing.T) {
	s := newTestServer(t)
	index := uint64(0)

	rec := s.do(t, http.MethodPost, "/api/messages", api.SendMessagesData{
		Messages: []api.SendMessage{{ToPublicIdentityKey: []byte{9}, Data: []byte("x")}},
		Index:    &index,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.messaging.sent, 2)

	rec = s.do(t, http.MethodPost, "/api/messages", api.SendMessagesData{
		Messages: []api.SendMessage{{ToPublicIdentityKey: []byte{9}, Data: []byte("x")}, {ToPublicIdentityKey: []byte{9}, Data: []byte("y")}},
		Index:    &index,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stale := uint64(3)
	rec = s.do(t, http.MethodPost, "/api/messages", api.SendMessagesData{
		Messages: []api.SendMessage{{ToPublicIdentityKey: []byte{9}, Data: []byte("x")}},
		Index:    &stale,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReceiveMessages(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.messaging.registered[string(identity.Public(s.privateKey))] = nil
	rec = s.do(t, http.MethodGet, "/api/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var messages []api.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messages))
	assert.Len(t, messages, 1)
}
