package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/domain/auth_errors"
	"github.com/nfrund/roomchat/internal/session"
	"github.com/nfrund/roomchat/internal/wire"
)

const testToken = "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b"

func authBody(username, role string) map[string]any {
	return map[string]any{
		"token":   testToken,
		"user":    map[string]any{"id": 7, "username": username, "email": username + "@example.com"},
		"profile": map[string]any{"role": role},
	}
}

// requireToken mimics the backend's token authentication.
func requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Token "+testToken {
			return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		}
		return next(c)
	}
}

func newTestAPI(t *testing.T) (*Client, *session.FileStore) {
	t.Helper()

	e := echo.New()
	e.HideBanner = true

	e.POST("/api/auth/login/", func(c echo.Context) error {
		var creds Credentials
		if err := c.Bind(&creds); err != nil {
			return err
		}
		if creds.Password != "hunter2" {
			return c.JSON(http.StatusBadRequest, map[string]any{"non_field_errors": []string{"Unable to log in with provided credentials."}})
		}
		return c.JSON(http.StatusOK, authBody(creds.Username, domain.RoleAdmin))
	})
	e.POST("/api/auth/register/", func(c echo.Context) error {
		var reg Registration
		if err := c.Bind(&reg); err != nil {
			return err
		}
		if reg.Username == "taken" {
			return c.JSON(http.StatusBadRequest, map[string]any{"username": []string{"A user with that username already exists."}})
		}
		return c.JSON(http.StatusCreated, authBody(reg.Username, reg.Role))
	})

	g := e.Group("/api", requireToken)
	g.GET("/auth/me/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, domain.UserProfile{ID: 7, Username: "alice", Email: "alice@example.com", Role: domain.RoleAdmin})
	})
	g.GET("/rooms/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []domain.Room{
			{ID: 1, Name: "General", OwnerUsername: "alice", ParticipantsCount: 2, IsParticipant: true},
			{ID: 2, Name: "Random", OwnerUsername: "bob"},
		})
	})
	g.POST("/rooms/", func(c echo.Context) error {
		var req createRoomRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, domain.Room{ID: 3, Name: req.Name, OwnerUsername: "alice", ParticipantsCount: 1, IsParticipant: true})
	})
	g.GET("/rooms/:id/", func(c echo.Context) error {
		if c.Param("id") != "1" {
			return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
		}
		return c.JSON(http.StatusOK, domain.Room{ID: 1, Name: "General", OwnerUsername: "alice"})
	})
	g.POST("/rooms/:id/join/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "joined"})
	})
	g.POST("/rooms/:id/leave/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	g.DELETE("/rooms/:id/", func(c echo.Context) error {
		if c.Param("id") == "2" {
			return c.JSON(http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
		}
		return c.NoContent(http.StatusNoContent)
	})
	g.GET("/rooms/:id/messages/", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`[
			{"id": 2, "content": "second", "sender_username": "bob", "timestamp": "2024-01-01T10:00:02Z"},
			{"id": 1, "content": "first", "sender_username": "alice", "timestamp": "2024-01-01T10:00:01Z"}
		]`))
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	store, err := session.NewFileStore(afero.NewMemMapFs(), "/home/alice/.roomchat/session.json")
	require.NoError(t, err)
	return New(srv.URL+"/api/", store, WithHTTPClient(srv.Client())), store
}

func login(t *testing.T, c *Client) {
	t.Helper()
	_, err := c.Login(context.Background(), Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
}

func TestClient_Login(t *testing.T) {
	c, store := newTestAPI(t)

	resp, err := c.Login(context.Background(), Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.User.Username)

	assert.Equal(t, session.Data{Token: testToken, Username: "alice", Role: domain.RoleAdmin}, store.Data())
}

func TestClient_LoginRejected(t *testing.T) {
	c, store := newTestAPI(t)

	_, err := c.Login(context.Background(), Credentials{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, auth_errors.ErrInvalidCredentials)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Unable to log in with provided credentials.", apiErr.Detail())
	assert.Empty(t, store.Credential())
}

func TestClient_LoginValidation(t *testing.T) {
	c, _ := newTestAPI(t)

	_, err := c.Login(context.Background(), Credentials{Username: "alice"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestClient_Register(t *testing.T) {
	c, store := newTestAPI(t)

	resp, err := c.Register(context.Background(), Registration{Username: "carol", Password: "pw", Email: "carol@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, resp.Profile.Role, "role defaults to customer")
	assert.Equal(t, "carol", store.Username())

	_, err = c.Register(context.Background(), Registration{Username: "taken", Password: "pw"})
	assert.ErrorIs(t, err, auth_errors.ErrUserAlreadyExists)

	_, err = c.Register(context.Background(), Registration{Username: "dave", Password: "pw", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.Register(context.Background(), Registration{Username: "dave", Password: "pw", Role: "ROOT"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestClient_RequiresToken(t *testing.T) {
	c, _ := newTestAPI(t)

	_, err := c.Rooms(context.Background())
	assert.ErrorIs(t, err, auth_errors.ErrNotAuthenticated)
}

func TestClient_Rooms(t *testing.T) {
	c, _ := newTestAPI(t)
	login(t, c)
	ctx := context.Background()

	rooms, err := c.Rooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.True(t, rooms[0].IsOwnedBy("alice"))
	assert.False(t, rooms[1].IsParticipant)

	room, err := c.Room(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "General", room.Name)

	_, err = c.Room(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	created, err := c.CreateRoom(ctx, "  Lounge ")
	require.NoError(t, err)
	assert.Equal(t, "Lounge", created.Name)

	_, err = c.CreateRoom(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.NoError(t, c.JoinRoom(ctx, 2))
	assert.NoError(t, c.LeaveRoom(ctx, 2))
	assert.NoError(t, c.DeleteRoom(ctx, 3))

	err = c.DeleteRoom(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Contains(t, err.Error(), "You do not have permission")
}

func TestClient_ProfileAndMessages(t *testing.T) {
	c, _ := newTestAPI(t)
	login(t, c)
	ctx := context.Background()

	p, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, p.Role)

	msgs, err := c.Messages(ctx, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "2", msgs[0].ID)
	assert.Equal(t, "bob", msgs[0].SenderUsername)
	assert.Equal(t, 2024, msgs[1].Timestamp.Year())
}

func TestClient_Logout(t *testing.T) {
	c, store := newTestAPI(t)
	login(t, c)

	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, store.Credential())
	assert.Empty(t, store.Username())
}

func TestError_Detail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Not found."}`, "Not found."},
		{`{"error":"Room is full"}`, "Room is full"},
		{`{"password":["Too short."],"email":["Enter a valid email address."]}`, "email: Enter a valid email address.; password: Too short."},
		{`Bad Gateway`, "Bad Gateway"},
	}
	for _, tt := range tests {
		e := &Error{Method: http.MethodGet, Path: "/x/", Status: http.StatusBadRequest, Body: tt.body}
		assert.Equal(t, tt.want, e.Detail())
	}
}

func TestClient_MessagesMalformed(t *testing.T) {
	e := echo.New()
	e.GET("/rooms/1/messages/", func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`[{"id": 1, "content": "no sender", "timestamp": 1704103201000}]`))
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	store, err := session.NewFileStore(afero.NewMemMapFs(), "/session.json")
	require.NoError(t, err)
	c := New(srv.URL, store)

	_, err = c.Messages(context.Background(), 1)
	assert.ErrorIs(t, err, wire.ErrMalformed)
}
