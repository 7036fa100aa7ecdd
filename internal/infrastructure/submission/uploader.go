package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kirillkom/annual-report-rag/internal/core/domain"
	"github.com/kirillkom/annual-report-rag/internal/infrastructure/resilience"
)

const uploadOperation = "submission.upload"

// Uploader posts the submission file as multipart field "file".
type Uploader struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewUploader(url string, timeout time.Duration, executor *resilience.Executor) *Uploader {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Uploader{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("submission upload status %d: %s", e.StatusCode, e.Body)
}

// Upload returns the endpoint's response body. A JSON response is returned
// compacted; anything else is returned as-is.
func (u *Uploader) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	body, contentType, err := multipartBody(filename, content)
	if err != nil {
		return "", err
	}

	call := func(ctx context.Context) (string, error) {
		return u.post(ctx, body, contentType)
	}
	if u.executor == nil {
		return call(ctx)
	}
	return resilience.Call(ctx, u.executor, uploadOperation, call, func(err error) resilience.ErrorClassification {
		var uploadErr *UploadError
		if errors.As(err, &uploadErr) && uploadErr.StatusCode < 500 && uploadErr.StatusCode != http.StatusTooManyRequests {
			return resilience.ErrorClassification{}
		}
		return resilience.ClassifyTemporary(err)
	})
}

func (u *Uploader) post(ctx context.Context, body []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, uploadOperation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.WrapError(domain.ErrTemporary, uploadOperation, err)
	}
	if resp.StatusCode >= 300 {
		uploadErr := &UploadError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", domain.WrapError(domain.ErrTemporary, uploadOperation, uploadErr)
		}
		return "", uploadErr
	}

	var compact bytes.Buffer
	if json.Compact(&compact, raw) == nil {
		return compact.String(), nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func multipartBody(filename string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
