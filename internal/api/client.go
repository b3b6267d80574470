// Package api is the client for the chat backend's REST endpoints: accounts
// and rooms. Messages themselves flow over the websocket (see package chat).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
	"github.com/nfrund/roomchat/internal/session"
	"github.com/nfrund/roomchat/internal/wire"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// ErrInvalidRequest wraps request validation failures. Nothing is sent.
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New()

// Session is where the client reads the token from and where login persists
// it. *session.FileStore satisfies it.
type Session interface {
	Credential() string
	Save(session.Data) error
	Clear() error
}

// Client talks to the REST API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New returns a client for baseURL, e.g. http://localhost:8000/api.
func New(baseURL string, s Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		session:    s,
		logger:     slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credentials is the login form.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration is the sign-up form. An empty Role registers a customer.
type Registration struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"required,oneof=CUSTOMER BOOSTER ADMIN"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
	Profile struct {
		Role string `json:"role"`
	} `json:"profile"`
}

type createRoomRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Login signs in and persists the token, username and role.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	if err := validateRequest(creds); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login/", creds, &resp); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			apiErr.cause = auth_errors.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := c.persist(&resp); err != nil {
		return nil, err
	}
	c.logger.Info("Logged in", "username", resp.User.Username, "role", resp.Profile.Role)
	return &resp, nil
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResponse, error) {
	if reg.Role == "" {
		reg.Role = domain.RoleCustomer
	}
	if err := validateRequest(reg); err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register/", reg, &resp); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && strings.Contains(apiErr.Body, "exists") {
			apiErr.cause = auth_errors.ErrUserAlreadyExists
		}
		return nil, err
	}
	if err := c.persist(&resp); err != nil {
		return nil, err
	}
	c.logger.Info("Registered", "username", resp.User.Username, "role", resp.Profile.Role)
	return &resp, nil
}

// Logout forgets the session. The backend keeps no server-side state for it.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.session.Clear(); err != nil {
		return err
	}
	c.logger.Info("Logged out")
	return nil
}

// Profile returns the signed-in user.
func (c *Client) Profile(ctx context.Context) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := c.do(ctx, http.MethodGet, "/auth/me/", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Rooms lists every room.
func (c *Client) Rooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.do(ctx, http.MethodGet, "/rooms/", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Room returns one room.
func (c *Client) Room(ctx context.Context, id int64) (*domain.Room, error) {
	var room domain.Room
	if err := c.do(ctx, http.MethodGet, roomPath(id, ""), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateRoom creates a room owned by the signed-in user.
func (c *Client) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	req := createRoomRequest{Name: strings.TrimSpace(name)}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var room domain.Room
	if err := c.do(ctx, http.MethodPost, "/rooms/", req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// JoinRoom adds the signed-in user to the room's participants.
func (c *Client) JoinRoom(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, roomPath(id, "join/"), nil, nil)
}

// LeaveRoom removes the signed-in user from the room's participants.
func (c *Client) LeaveRoom(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, roomPath(id, "leave/"), nil, nil)
}

// DeleteRoom deletes a room. The backend only allows this for admins.
func (c *Client) DeleteRoom(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, roomPath(id, ""), nil, nil)
}

// Messages returns the stored history of a room in server order.
func (c *Client) Messages(ctx context.Context, id int64) ([]domain.ChatMessage, error) {
	var history wire.HistoryEvent
	if err := c.do(ctx, http.MethodGet, roomPath(id, "messages/"), nil, &history.Messages); err != nil {
		return nil, err
	}
	if err := validate.Struct(history); err != nil {
		return nil, fmt.Errorf("%w: %v", wire.ErrMalformed, err)
	}
	return history.ChatMessages(), nil
}

func roomPath(id int64, suffix string) string {
	return "/rooms/" + strconv.FormatInt(id, 10) + "/" + suffix
}

func (c *Client) persist(resp *AuthResponse) error {
	if resp.Token == "" {
		return fmt.Errorf("%w: response carried no token", wire.ErrMalformed)
	}
	return c.session.Save(session.Data{
		Token:    resp.Token,
		Username: resp.User.Username,
		Role:     resp.Profile.Role,
	})
}

func validateRequest(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Credential(); token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	c.logger.Debug("API request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(method, path, resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
