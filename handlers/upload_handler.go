package handlers

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// uploadedAudio accepts either a multipart form with a "file" field or the
// raw audio as the request body.
func uploadedAudio(c *fiber.Ctx) ([]byte, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("file")
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Audio file is required")
		}
		f, err := file.Open()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Cannot read uploaded file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Cannot read uploaded file")
		}
		if len(data) == 0 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Audio file is empty")
		}
		return data, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Audio file is required")
	}
	return append([]byte(nil), body...), nil
}
