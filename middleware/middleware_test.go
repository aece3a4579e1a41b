package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapslead/models"
	"mapslead/testutil"
	"mapslead/utils"
)

const secret = "test-secret"

func protectedApp(t *testing.T) (*fiber.App, models.User) {
	t.Helper()
	db := testutil.NewDB(t)
	user := models.User{Email: "owner@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	app := fiber.New()
	app.Get("/me", Protected(db, secret), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).ID)
	})
	return app, user
}

func TestProtected(t *testing.T) {
	app, user := protectedApp(t)
	valid, err := utils.GenerateJWTToken(secret, user.ID, user.Email, time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateJWTToken(secret, user.ID, user.Email, -time.Hour)
	require.NoError(t, err)
	foreign, err := utils.GenerateJWTToken("other-secret", user.ID, user.Email, time.Hour)
	require.NoError(t, err)
	unknown, err := utils.GenerateJWTToken(secret, "missing-user", "ghost@example.com", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   int
	}{
		{name: "no credentials", target: "/me", want: fiber.StatusUnauthorized},
		{name: "bearer header", target: "/me", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, want: fiber.StatusOK},
		{name: "malformed header", target: "/me", setup: func(r *http.Request) { r.Header.Set("Authorization", valid) }, want: fiber.StatusUnauthorized},
		{name: "cookie", target: "/me", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: valid}) }, want: fiber.StatusOK},
		{name: "query parameter", target: "/me?token=" + valid, want: fiber.StatusOK},
		{name: "expired token", target: "/me", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, want: fiber.StatusUnauthorized},
		{name: "wrong key", target: "/me", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreign) }, want: fiber.StatusUnauthorized},
		{name: "deleted user", target: "/me", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+unknown) }, want: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.setup != nil {
				tt.setup(req)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(DefaultCORSConfig([]string{"https://app.example.com"})))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStartRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name    string
		storage fiber.Storage
	}{
		{name: "memory", storage: nil},
		{name: "redis", storage: NewRedisStorage(client)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/start", func(c *fiber.Ctx) error {
				c.Locals("userID", c.Get("X-User"))
				return c.Next()
			}, StartRateLimiter(2, tt.storage), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			send := func(user string) int {
				req := httptest.NewRequest(http.MethodPost, "/start", nil)
				req.Header.Set("X-User", user)
				resp, err := app.Test(req)
				require.NoError(t, err)
				return resp.StatusCode
			}

			assert.Equal(t, fiber.StatusOK, send("a-"+tt.name))
			assert.Equal(t, fiber.StatusOK, send("a-"+tt.name))
			assert.Equal(t, fiber.StatusTooManyRequests, send("a-"+tt.name))
			assert.Equal(t, fiber.StatusOK, send("b-"+tt.name), "limits are per user")
		})
	}
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStorage(client)

	val, err := store.Get("rl:missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Set("rl:user:/start", []byte("1"), time.Minute))
	require.NoError(t, client.Set(context.Background(), "analytics:summary:user", "{}", 0).Err())

	val, err = store.Get("rl:user:/start")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), val)

	require.NoError(t, store.Reset())
	assert.False(t, mr.Exists("rl:user:/start"))
	assert.True(t, mr.Exists("analytics:summary:user"), "reset keeps other keys")
}
