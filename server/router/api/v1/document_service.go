package v1

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/murmurchat/murmur/plugin/ai"
	"github.com/murmurchat/murmur/plugin/pdf"
)

const documentFormField = "file"

type summaryResponse struct {
	Pages   int    `json:"pages"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
	// ArchivedKey is the object key of the archived upload, empty when archiving is off or failed.
	ArchivedKey string `json:"archivedKey,omitempty"`
	ArchiveURL  string `json:"archiveUrl,omitempty"`
}

func (s *APIV1Service) registerDocumentRoutes(g *echo.Group) {
	g.POST("/documents/summarize", s.summarizeDocument)
}

func (s *APIV1Service) summarizeDocument(c *echo.Context) error {
	user, err := s.Authenticator.RequireUser(c)
	if err != nil {
		return err
	}
	if s.Generator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI summaries are not configured")
	}

	header, err := c.FormFile(documentFormField)
	if err != nil {
		return invalid(c, documentFormField, "a PDF file is required")
	}
	if header.Size > pdf.MaxSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", pdf.MaxSize>>20))
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return invalid(c, documentFormField, "only PDF files are supported")
	}
	file, err := header.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer file.Close()
	// Read one byte past the limit to catch lying Content-Length headers.
	content, err := io.ReadAll(io.LimitReader(file, pdf.MaxSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(content) > pdf.MaxSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", pdf.MaxSize>>20))
	}

	doc, err := pdf.Extract(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		slog.Error("failed to extract PDF text", slog.String("file", header.Filename), slog.Any("err", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read the PDF")
	}

	ctx := c.Request().Context()
	text := doc.Text()
	summary, err := ai.Summarize(ctx, s.Generator, text)
	if err != nil {
		slog.Error("failed to summarize document", slog.Int("user", int(user.ID)), slog.Any("err", err))
		return echo.NewHTTPError(http.StatusBadGateway, "the AI service failed to summarize the document")
	}

	resp := summaryResponse{
		Pages:   len(doc.Pages),
		Text:    text,
		Summary: summary,
	}
	resp.ArchivedKey, resp.ArchiveURL = s.archiveDocument(ctx, content)
	return c.JSON(http.StatusOK, resp)
}

// archiveDocument stores the upload in the S3 archive. Failures are logged
// and do not fail the request.
func (s *APIV1Service) archiveDocument(ctx context.Context, content []byte) (string, string) {
	if s.Archive == nil {
		return "", ""
	}
	key := fmt.Sprintf("documents/%s/%s.pdf", time.Now().UTC().Format("2006/01"), uuid.NewString())
	if _, err := s.Archive.UploadObject(ctx, key, "application/pdf", bytes.NewReader(content)); err != nil {
		slog.Warn("failed to archive document", slog.String("key", key), slog.Any("err", err))
		return "", ""
	}
	url, err := s.Archive.PresignGetObject(ctx, key)
	if err != nil {
		slog.Warn("failed to presign archived document", slog.String("key", key), slog.Any("err", err))
		return key, ""
	}
	return key, url
}
