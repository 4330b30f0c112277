// Package api exposes the engine's introspection surface over HTTP.
package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/schedulr/realtime/src/conn"
	"github.com/schedulr/realtime/src/service"
	"github.com/valyala/fasthttp"
)

// Register mounts the realtime routes on a fiber router.
func Register(group fiber.Router, eng *service.Engine) {
	group.Get("/realtime/info", handleInfo(eng))
	group.Get("/realtime/notifications", handleNotifications(eng))
	group.Post("/realtime/notifications/:id/read", handleMarkRead(eng))
	group.Post("/realtime/notifications/read-all", handleMarkAllRead(eng))
	group.Get("/realtime/rooms", handleRooms(eng))
	group.Get("/realtime/presence", handlePresence(eng))
}

func handleInfo(eng *service.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(eng.Snapshot())
	}
}

func handleNotifications(eng *service.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		n := eng.Notifications()
		return c.JSON(fiber.Map{
			"notifications": n.List(),
			"unread_dot":    n.Unread(),
		})
	}
}

func handleMarkRead(eng *service.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id required"})
		}
		eng.Notifications().MarkRead(c.Context(), id)
		return c.JSON(fiber.Map{"ok": true})
	}
}

func handleMarkAllRead(eng *service.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		eng.Notifications().MarkAllRead(c.Context())
		return c.JSON(fiber.Map{"ok": true})
	}
}

func handleRooms(eng *service.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"rooms": eng.Chat().Rooms()})
	}
}

func handlePresence(eng *service.Engine) fiber.Handler {
	return func(c fiber.Ctx) error {
		p := eng.Presence()
		return c.JSON(fiber.Map{
			"users": p.List(),
			"count": p.Count(),
		})
	}
}

// HealthHandler returns a raw fasthttp handler suitable for mounting at the
// server level, outside the fiber route tree.
func HealthHandler(eng *service.Engine) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		if eng.Snapshot().Notifications.State == conn.StateOpen {
			ctx.SetBodyString(`{"status":"ok"}`)
			return
		}
		ctx.SetBodyString(`{"status":"connecting"}`)
	}
}
