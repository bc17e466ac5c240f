package main

import (
	"time"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const headerRequestID = "X-Request-ID"

func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("request_id", id)
		c.Set(headerRequestID, id)
		return c.Next()
	}
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// Hata varsa ErrorHandler henüz çalışmadı, durum kodu oradan gelecek
		status := c.Response().StatusCode()
		if err != nil {
			status = apperror.StatusOf(err)
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		entry := config.GetLogger().WithFields(logrus.Fields{
			"request_id": c.Locals("request_id"),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn("istek hatayla bitti")
		} else {
			entry.Info("istek")
		}
		return err
	}
}
