package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"popchat/internal/config"
	"popchat/internal/server"
	"popchat/internal/stats"
	"popchat/internal/store"
	"popchat/internal/testutil"
)

func newTestApp(t *testing.T, repo store.Repository) (*PopChatApp, *server.ChatServer, *stats.MockStatsUpdater) {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, repo, su)
	require.NoError(t, err, "failed to create chat server")

	cfg, err := config.NewConfig("localhost:8000", nil, config.StoreMemory, "", "", 0, 0)
	require.NoError(t, err, "failed to create config")

	app := NewPopChatApp(http.NewServeMux(), logger, cs, repo, su, cfg)
	return app, cs, su
}

func doRequest(app *PopChatApp, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	app.mux.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateRoom(t *testing.T) {
	repo := store.NewMemoryRepository()
	app, _, su := newTestApp(t, repo)
	app.generateRoomId = func() (string, error) { return "AB12CD34", nil }

	rec := doRequest(app, http.MethodPost, "/rooms", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp CreateRoomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "AB12CD34", resp.RoomId)
	assert.True(t, resp.Created)

	room, err := repo.GetRoom("AB12CD34")
	require.NoError(t, err, "expected the room to be persisted")
	assert.Empty(t, room.PasswordHash, "expected no password hash without a password")

	su.AssertCalled(t, "Incr", "NumRoomsCreated")
}

func TestCreateRoom_WithPassword(t *testing.T) {
	repo := store.NewMemoryRepository()
	app, _, _ := newTestApp(t, repo)
	app.generateRoomId = func() (string, error) { return "AB12CD34", nil }

	rec := doRequest(app, http.MethodPost, "/rooms", strings.NewReader(`{"password":"s3cret"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	room, err := repo.GetRoom("AB12CD34")
	require.NoError(t, err)
	require.NotEmpty(t, room.PasswordHash, "expected the password to be hashed and stored")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte("s3cret")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte("wrong")))
}

func TestCreateRoom_MalformedBody(t *testing.T) {
	app, _, su := newTestApp(t, store.NewMemoryRepository())

	rec := doRequest(app, http.MethodPost, "/rooms", strings.NewReader(`{`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr ApiError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	su.AssertNotCalled(t, "Incr", "NumRoomsCreated")
}

func TestCreateRoom_GeneratorFailure(t *testing.T) {
	app, _, _ := newTestApp(t, store.NewMemoryRepository())
	app.generateRoomId = func() (string, error) { return "", errors.New("exhausted") }

	rec := doRequest(app, http.MethodPost, "/rooms", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetRoom(t *testing.T) {
	repo := store.NewMemoryRepository()
	_, err := repo.CreateRoom(store.CreateRoomParams{Id: "AB12CD34"})
	require.NoError(t, err)

	msg, err := repo.AppendMessage(store.AppendMessageParams{
		RoomId: "AB12CD34", SenderId: "p1", SenderNickname: "Alice", Content: "hi",
	})
	require.NoError(t, err)

	app, _, _ := newTestApp(t, repo)

	rec := doRequest(app, http.MethodGet, "/rooms/AB12CD34", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp GetRoomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "AB12CD34", resp.Room.Id)
	assert.Zero(t, resp.Room.ParticipantCount)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, msg.Id, resp.Messages[0].Id)
	assert.Equal(t, "hi", resp.Messages[0].Content)
	assert.Equal(t, []string{}, resp.Messages[0].ReadBy)
	assert.Equal(t, []string{}, resp.Messages[0].DeliveredTo)
}

func TestGetRoom_NotFound(t *testing.T) {
	app, _, _ := newTestApp(t, store.NewMemoryRepository())

	rec := doRequest(app, http.MethodGet, "/rooms/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var apiErr ApiError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not found", apiErr.Message)
}

func TestDeleteRoom(t *testing.T) {
	repo := store.NewMemoryRepository()
	_, err := repo.CreateRoom(store.CreateRoomParams{Id: "AB12CD34"})
	require.NoError(t, err)

	app, cs, _ := newTestApp(t, repo)
	go cs.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cs.Shutdown(ctx); err != nil {
			t.Errorf("chat server shutdown: %v", err)
		}
	}()

	rec := doRequest(app, http.MethodDelete, "/rooms/AB12CD34", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp DeleteRoomResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Destroyed)

	rec = doRequest(app, http.MethodGet, "/rooms/AB12CD34", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "expected the room to be gone after delete")

	rec = doRequest(app, http.MethodDelete, "/rooms/AB12CD34", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "expected a second delete to 404")
}

func TestErrorHandler_RecoversPanics(t *testing.T) {
	app, _, _ := newTestApp(t, store.NewMemoryRepository())
	app.generateRoomId = func() (string, error) { panic("boom") }

	rec := doRequest(app, http.MethodPost, "/rooms", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
}
