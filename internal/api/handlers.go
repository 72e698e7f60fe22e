package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"popchat/internal/server"
	"popchat/internal/store"
	"popchat/internal/types"
)

type CreateRoomRequest struct {
	// Password is optional; when set, joins must present it.
	Password string `json:"password"`
}

type CreateRoomResponse struct {
	RoomId  string `json:"roomId"`
	Created bool   `json:"created"`
}

type GetRoomResponse struct {
	Room     types.Room      `json:"room"`
	Messages []types.Message `json:"messages"`
}

type DeleteRoomResponse struct {
	Destroyed bool `json:"destroyed"`
}

func (s *PopChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *PopChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var pwdHash string
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		pwdHash = string(hash)
	}

	sid, err := s.generateRoomId()
	if err != nil {
		s.log.Print("generateRoomId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.repo.CreateRoom(store.CreateRoomParams{
		Id:           sid,
		PasswordHash: pwdHash,
	})
	if err != nil {
		s.log.Println("create room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.stats.Incr("NumRoomsCreated")

	s.writeJson(w, http.StatusCreated, CreateRoomResponse{
		RoomId:  room.Id,
		Created: true,
	})
}

func (s *PopChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")

	room, err := s.repo.GetRoom(roomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrRoomNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	storedMessages, err := s.repo.ListMessages(roomId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(storedMessages))
	for _, msg := range storedMessages {
		messages = append(messages, types.Message{
			Id:             msg.Id,
			RoomId:         msg.RoomId,
			SenderId:       msg.SenderId,
			SenderNickname: msg.SenderNickname,
			Content:        msg.Content,
			Timestamp:      msg.CreatedAt,
			ReadBy:         []string{},
			DeliveredTo:    []string{},
		})
	}

	s.writeJson(w, http.StatusOK, GetRoomResponse{
		Room: types.Room{
			Id:               room.Id,
			CreatedAt:        room.CreatedAt,
			LastActivityAt:   room.LastActivityAt,
			ParticipantCount: room.ParticipantCount,
		},
		Messages: messages,
	})
}

func (s *PopChatApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("roomId")

	if err := s.cs.DestroyRoom(r.Context(), roomId); err != nil {
		var errResp *ApiError
		if errors.Is(err, store.ErrRoomNotFound) {
			errResp = NewNotFoundError()
		} else {
			s.log.Println("destroy room:", err)
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, DeleteRoomResponse{Destroyed: true})
}

func (s *PopChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.allowedOrigins) == 0 {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
