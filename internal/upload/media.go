// Package upload talks to the third-party media host holding agreement
// documents and deal images. Files go up one at a time with a progress
// callback; a remote delete must succeed before local state forgets an item.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"securedeal-client/internal/domain"
)

// ProgressFunc receives upload progress in percent, 0-100.
type ProgressFunc func(percent int)

type MediaClient struct {
	uploadURL string
	deleteURL string
	preset    string
	httpc     *http.Client
	logger    *zap.Logger
}

func NewMediaClient(uploadURL, deleteURL, preset string, timeout time.Duration, logger *zap.Logger) *MediaClient {
	return &MediaClient{
		uploadURL: uploadURL,
		deleteURL: deleteURL,
		preset:    preset,
		httpc:     &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type uploadResponse struct {
	PublicID         string `json:"public_id"`
	SecureURL        string `json:"secure_url"`
	OriginalFilename string `json:"original_filename"`
	Format           string `json:"format"`
	ResourceType     string `json:"resource_type"`
}

// progressReader reports consumed bytes against a known total.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.progress != nil && p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		p.progress(pct)
	}
	return n, err
}

// Upload sends one file and returns its media reference. The whole multipart
// body is assembled up front so progress reflects bytes on the wire.
func (m *MediaClient) Upload(ctx context.Context, name, mimeType string, content []byte, progress ProgressFunc) (*domain.MediaRef, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("upload_preset", m.preset); err != nil {
		return nil, fmt.Errorf("write preset field: %w", err)
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	reader := &progressReader{r: &body, total: int64(body.Len()), progress: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.uploadURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload %s: http status %d", name, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	m.logger.Info("media uploaded",
		zap.String("name", name),
		zap.String("publicId", out.PublicID))

	return &domain.MediaRef{
		PublicID: out.PublicID,
		URL:      out.SecureURL,
		Name:     name,
		MimeType: mimeType,
	}, nil
}

type deleteResponse struct {
	Result string `json:"result"`
}

// Delete removes an uploaded item by its public id. Callers must not drop
// the item locally unless this returns nil.
func (m *MediaClient) Delete(ctx context.Context, publicID string) error {
	form := url.Values{}
	form.Set("public_id", publicID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.deleteURL, bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read delete response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete %s: http status %d", publicID, resp.StatusCode)
	}

	var out deleteResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("decode delete response: %w", err)
	}
	if out.Result != "ok" {
		return fmt.Errorf("delete %s: media host returned %q", publicID, out.Result)
	}
	return nil
}
