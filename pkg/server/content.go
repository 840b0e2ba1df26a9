package server

import (
	"encoding/json"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/usecase/content"
)

const (
	formData  = "data"
	formImage = "image"
)

// readPayload accepts either a JSON object body or a multipart form with
// the JSON object in the "data" field and an optional "image" file. The
// returned close function releases the uploaded file.
func readPayload(c *fiber.Ctx) (map[string]any, *adapter.File, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		var payload map[string]any
		if len(c.Body()) == 0 {
			return map[string]any{}, nil, noop, nil
		}
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return nil, nil, noop, goerr.Wrap(model.ErrValidation, "body must be a JSON object", goerr.V("error", err.Error()))
		}
		return payload, nil, noop, nil
	}

	payload := map[string]any{}
	if data := c.FormValue(formData); data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, nil, noop, goerr.Wrap(model.ErrValidation, "data field must be a JSON object", goerr.V("error", err.Error()))
		}
	}

	fh, err := c.FormFile(formImage)
	if err != nil {
		// no image part
		return payload, nil, noop, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, noop, goerr.Wrap(model.ErrValidation, "failed to read uploaded image", goerr.V("file", fh.Filename))
	}
	return payload, formFile(fh, f), func() { _ = f.Close() }, nil
}

func formFile(fh *multipart.FileHeader, f multipart.File) *adapter.File {
	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	return &adapter.File{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Reader:      f,
	}
}

func (s *Server) collection(c *fiber.Ctx) (content.Collection, error) {
	return s.registry.Lookup(c.Params("collection"))
}

func (s *Server) listContent(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	records, err := col.List(c.UserContext(), c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"collection": col.Slug(), "records": records})
}

func (s *Server) createContent(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	payload, image, done, err := readPayload(c)
	if err != nil {
		return err
	}
	defer done()

	doc, err := col.Create(c.UserContext(), payload, image)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (s *Server) getContent(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	doc, err := col.Get(c.UserContext(), paramID(c))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (s *Server) updateContent(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	patch, image, done, err := readPayload(c)
	if err != nil {
		return err
	}
	defer done()

	doc, err := col.Update(c.UserContext(), paramID(c), patch, image)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (s *Server) deleteContent(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	if err := col.Delete(c.UserContext(), paramID(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type previewRequest struct {
	Content string `json:"content" form:"content"`
}

func (s *Server) preview(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return goerr.Wrap(model.ErrValidation, "invalid preview request", goerr.V("error", err.Error()))
	}
	return c.JSON(fiber.Map{"html": content.RenderPreview(req.Content)})
}

func (s *Server) listPublic(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	records, err := col.ListPublic(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

func (s *Server) getPublic(c *fiber.Ctx) error {
	col, err := s.collection(c)
	if err != nil {
		return err
	}
	doc, err := col.GetPublic(c.UserContext(), paramID(c))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (s *Server) getFile(c *fiber.Ctx) error {
	path, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return goerr.Wrap(model.ErrNotFound, "invalid file path")
	}
	data, contentType, err := s.files.Open(path)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "database": s.db.Backend()})
}

// paramID copies the id route parameter out of the request buffer.
func paramID(c *fiber.Ctx) model.RecordID {
	return model.RecordID(strings.Clone(c.Params("id")))
}
