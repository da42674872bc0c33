package logging

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func Test_RequestLogger_AssignsID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop()))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString(RequestID(c)) })

	res, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Header.Get("X-Request-ID"); len(got) != 21 {
		t.Fatalf("request id = %q", got)
	}
}

func Test_RequestLogger_KeepsIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop()))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "abc123")
	res, _ := app.Test(req)
	if res.Header.Get("X-Request-ID") != "abc123" {
		t.Fatalf("incoming id not echoed")
	}
}

func Test_RequestLogger_RendersErrors(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop()))
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.ErrForbidden })

	res, _ := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func Test_New_FallsBackToInfo(t *testing.T) {
	l, err := New("not-a-level")
	if err != nil {
		t.Fatal(err)
	}
	if !l.Core().Enabled(zap.InfoLevel) || l.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected info level")
	}
}
