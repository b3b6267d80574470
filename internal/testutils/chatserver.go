package testutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/roomchat/internal/domain"
)

// Close codes the backend uses when it rejects or drops a room connection.
const (
	CloseAuthMissing       = 4001
	CloseInvalidCredential = 4002
	CloseRoomNotFound      = 4003
	CloseAccessDenied      = 4004
	CloseSendForbidden     = 4005
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type account struct {
	password string
	role     string
	token    string
}

type room struct {
	domain.Room
	members  map[string]bool
	history  []historyEntry
	readOnly map[string]bool
}

type historyEntry struct {
	ID             int64  `json:"id"`
	Content        string `json:"content"`
	SenderUsername string `json:"sender_username"`
	Timestamp      string `json:"timestamp"`
}

// ServerConn is one websocket client as seen by the ChatServer.
type ServerConn struct {
	RoomID   int64
	Username string

	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *ServerConn) writeJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return c.conn.WriteJSON(v)
}

// CloseWith sends a close frame with code and drops the connection.
func (c *ServerConn) CloseWith(code int, reason string) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
}

// ChatServer is an in-process fake of the chat backend: token
// authentication, the room REST endpoints and the per-room websocket.
type ChatServer struct {
	*httptest.Server

	logger *slog.Logger

	mu       sync.Mutex
	accounts map[string]*account
	rooms    map[int64]*room
	conns    []*ServerConn
	nextRoom int64
	nextMsg  int64
}

// NewChatServer starts a server with the given users (username -> password)
// and no rooms. It is closed when t finishes.
func NewChatServer(t *testing.T, users map[string]string) *ChatServer {
	t.Helper()

	s := &ChatServer{
		logger:   slog.Default().With("component", "test_chat_server"),
		accounts: make(map[string]*account),
		rooms:    make(map[int64]*room),
	}
	for name, password := range users {
		role := domain.RoleCustomer
		if name == "admin" {
			role = domain.RoleAdmin
		}
		s.accounts[name] = &account{password: password, role: role, token: "token-" + name}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/ws/chat/:room/", s.handleWebsocket)

	api := e.Group("/api")
	api.POST("/auth/login/", s.handleLogin)
	authed := api.Group("", s.requireToken)
	authed.GET("/auth/me/", s.handleMe)
	authed.GET("/rooms/", s.handleListRooms)
	authed.POST("/rooms/", s.handleCreateRoom)
	authed.GET("/rooms/:id/", s.handleGetRoom)
	authed.DELETE("/rooms/:id/", s.handleDeleteRoom)
	authed.POST("/rooms/:id/join/", s.handleJoin)
	authed.POST("/rooms/:id/leave/", s.handleLeave)
	authed.GET("/rooms/:id/messages/", s.handleMessages)

	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the REST base URL.
func (s *ChatServer) APIURL() string {
	return s.URL + "/api"
}

// WebsocketURL is the websocket origin.
func (s *ChatServer) WebsocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// Token returns the credential issued to username.
func (s *ChatServer) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[username]; ok {
		return a.token
	}
	return ""
}

// CreateRoom adds a room owned by owner with the given members.
func (s *ChatServer) CreateRoom(name, owner string, members ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRoomLocked(name, owner, members...)
}

func (s *ChatServer) createRoomLocked(name, owner string, members ...string) int64 {
	s.nextRoom++
	r := &room{
		Room:     domain.Room{ID: s.nextRoom, Name: name, OwnerUsername: owner},
		members:  map[string]bool{owner: true},
		readOnly: make(map[string]bool),
	}
	for _, m := range members {
		r.members[m] = true
	}
	s.rooms[r.ID] = r
	return r.ID
}

// SetReadOnly makes the server close username's connections to roomID with
// CloseSendForbidden when they send a message.
func (s *ChatServer) SetReadOnly(roomID int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		r.readOnly[username] = true
	}
}

// Seed appends a stored message to a room's history.
func (s *ChatServer) Seed(roomID int64, sender, content string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		s.nextMsg++
		r.history = append(r.history, historyEntry{
			ID:             s.nextMsg,
			Content:        content,
			SenderUsername: sender,
			Timestamp:      at.UTC().Format(time.RFC3339Nano),
		})
	}
}

// Contents returns "sender: content" for every stored message of roomID.
func (s *ChatServer) Contents(roomID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.history))
	for _, h := range r.history {
		out = append(out, h.SenderUsername+": "+h.Content)
	}
	return out
}

// Conns returns the open connections to roomID.
func (s *ChatServer) Conns(roomID int64) []*ServerConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ServerConn
	for _, c := range s.conns {
		if c.RoomID == roomID {
			out = append(out, c)
		}
	}
	return out
}

// CloseRoom drops every connection to roomID with code.
func (s *ChatServer) CloseRoom(roomID int64, code int) {
	for _, c := range s.Conns(roomID) {
		c.CloseWith(code, "closed by test")
	}
}

func (s *ChatServer) handleWebsocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	// Rejections happen after the upgrade so the client sees a close code,
	// as it would from the real backend.
	token := c.QueryParam("token")
	roomID, _ := strconv.ParseInt(c.Param("room"), 10, 64)

	s.mu.Lock()
	username, code := s.authorizeLocked(token, roomID)
	s.mu.Unlock()

	sc := &ServerConn{RoomID: roomID, Username: username, conn: ws}
	if code != 0 {
		sc.CloseWith(code, "rejected")
		return nil
	}

	s.mu.Lock()
	s.conns = append(s.conns, sc)
	history := append([]historyEntry(nil), s.rooms[roomID].history...)
	s.mu.Unlock()

	s.logger.Debug("Client connected", "room_id", roomID, "username", username)
	if history == nil {
		history = []historyEntry{}
	}
	_ = sc.writeJSON(map[string]any{"type": "message_history", "messages": history})
	s.broadcastParticipants(roomID, username, "joined")

	s.readLoop(sc)

	s.mu.Lock()
	for i, other := range s.conns {
		if other == sc {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	_ = ws.Close()
	s.broadcastParticipants(roomID, username, "left")
	return nil
}

func (s *ChatServer) authorizeLocked(token string, roomID int64) (string, int) {
	if token == "" {
		return "", CloseAuthMissing
	}
	var username string
	for name, a := range s.accounts {
		if a.token == token {
			username = name
		}
	}
	if username == "" {
		return "", CloseInvalidCredential
	}
	r, ok := s.rooms[roomID]
	if !ok {
		return username, CloseRoomNotFound
	}
	if !r.members[username] {
		return username, CloseAccessDenied
	}
	return username, 0
}

func (s *ChatServer) readLoop(sc *ServerConn) {
	for {
		_, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame struct {
			Type     string `json:"type"`
			Message  string `json:"message"`
			IsTyping bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = sc.writeJSON(map[string]string{"error": "Invalid JSON"})
			continue
		}

		switch frame.Type {
		case "chat_message":
			if err := s.acceptMessage(sc, frame.Message); err != nil {
				return
			}
		case "typing":
			s.broadcast(sc.RoomID, sc, map[string]any{
				"type":      "user_typing",
				"username":  sc.Username,
				"is_typing": frame.IsTyping,
			})
		default:
			_ = sc.writeJSON(map[string]string{"error": "Unknown message type"})
		}
	}
}

var errForbidden = errors.New("send forbidden")

func (s *ChatServer) acceptMessage(sc *ServerConn, content string) error {
	s.mu.Lock()
	r := s.rooms[sc.RoomID]
	if r == nil || r.readOnly[sc.Username] {
		s.mu.Unlock()
		sc.CloseWith(CloseSendForbidden, "read only")
		return errForbidden
	}
	s.nextMsg++
	now := time.Now().UTC()
	entry := historyEntry{ID: s.nextMsg, Content: content, SenderUsername: sc.Username, Timestamp: now.Format(time.RFC3339Nano)}
	r.history = append(r.history, entry)
	s.mu.Unlock()

	s.broadcast(sc.RoomID, nil, map[string]any{
		"type":       "chat_message",
		"message_id": entry.ID,
		"message":    content,
		"sender":     sc.Username,
		"timestamp":  entry.Timestamp,
	})
	return nil
}

func (s *ChatServer) broadcastParticipants(roomID int64, username, action string) {
	var names []string
	for _, c := range s.Conns(roomID) {
		names = append(names, c.Username)
	}
	if names == nil {
		names = []string{}
	}
	s.broadcast(roomID, nil, map[string]any{
		"type":         "room_participants",
		"participants": names,
		"username":     username,
		"action":       action,
	})
}

func (s *ChatServer) broadcast(roomID int64, except *ServerConn, frame any) {
	for _, c := range s.Conns(roomID) {
		if c == except {
			continue
		}
		if err := c.writeJSON(frame); err != nil {
			s.logger.Debug("Broadcast write failed", "username", c.Username, "error", err)
		}
	}
}

// REST handlers.

func (s *ChatServer) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Token ")
		s.mu.Lock()
		var username string
		for name, a := range s.accounts {
			if token != "" && a.token == token {
				username = name
			}
		}
		s.mu.Unlock()
		if username == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		}
		c.Set("username", username)
		return next(c)
	}
}

func (s *ChatServer) handleLogin(c echo.Context) error {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&creds); err != nil {
		return err
	}
	s.mu.Lock()
	a, ok := s.accounts[creds.Username]
	s.mu.Unlock()
	if !ok || a.password != creds.Password {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"non_field_errors": []string{"Unable to log in with provided credentials."},
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token":   a.token,
		"user":    map[string]any{"id": 1, "username": creds.Username, "email": creds.Username + "@example.com"},
		"profile": map[string]any{"role": a.role},
	})
}

func (s *ChatServer) handleMe(c echo.Context) error {
	username := c.Get("username").(string)
	s.mu.Lock()
	role := s.accounts[username].role
	s.mu.Unlock()
	return c.JSON(http.StatusOK, domain.UserProfile{ID: 1, Username: username, Email: username + "@example.com", Role: role})
}

func (s *ChatServer) roomView(r *room, username string) domain.Room {
	v := r.Room
	v.ParticipantsCount = len(r.members)
	v.IsParticipant = r.members[username]
	return v
}

func (s *ChatServer) lookupRoom(c echo.Context) (*room, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	r, ok := s.rooms[id]
	if !ok {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	return r, nil
}

func (s *ChatServer) handleListRooms(c echo.Context) error {
	username := c.Get("username").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Room, 0, len(s.rooms))
	for id := int64(1); id <= s.nextRoom; id++ {
		if r, ok := s.rooms[id]; ok {
			out = append(out, s.roomView(r, username))
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *ChatServer) handleCreateRoom(c echo.Context) error {
	username := c.Get("username").(string)
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"name": []string{"This field may not be blank."}})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.createRoomLocked(req.Name, username)
	return c.JSON(http.StatusCreated, s.roomView(s.rooms[id], username))
}

func (s *ChatServer) handleGetRoom(c echo.Context) error {
	username := c.Get("username").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupRoom(c)
	if r == nil {
		return err
	}
	return c.JSON(http.StatusOK, s.roomView(r, username))
}

func (s *ChatServer) handleDeleteRoom(c echo.Context) error {
	username := c.Get("username").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupRoom(c)
	if r == nil {
		return err
	}
	if s.accounts[username].role != domain.RoleAdmin {
		return c.JSON(http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
	}
	delete(s.rooms, r.ID)
	return c.NoContent(http.StatusNoContent)
}

func (s *ChatServer) handleJoin(c echo.Context) error {
	return s.setMembership(c, true)
}

func (s *ChatServer) handleLeave(c echo.Context) error {
	return s.setMembership(c, false)
}

func (s *ChatServer) setMembership(c echo.Context, member bool) error {
	username := c.Get("username").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupRoom(c)
	if r == nil {
		return err
	}
	if member {
		r.members[username] = true
	} else {
		delete(r.members, username)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": fmt.Sprintf("membership=%t", member)})
}

func (s *ChatServer) handleMessages(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.lookupRoom(c)
	if r == nil {
		return err
	}
	out := append([]historyEntry{}, r.history...)
	return c.JSON(http.StatusOK, out)
}
