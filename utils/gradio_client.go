package utils

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// GradioStatusError is returned when a Gradio endpoint answers with a non-2xx status.
type GradioStatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *GradioStatusError) Error() string {
	return fmt.Sprintf("gradio %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// GradioEventError is an "error" event emitted by a running prediction.
type GradioEventError struct {
	Message string
}

func (e *GradioEventError) Error() string {
	if e.Message == "" {
		return "gradio prediction failed"
	}
	return "gradio prediction failed: " + e.Message
}

// FileData is Gradio's wire shape for a file input or output.
type FileData struct {
	Path     string            `json:"path"`
	URL      string            `json:"url,omitempty"`
	OrigName string            `json:"orig_name,omitempty"`
	MimeType string            `json:"mime_type,omitempty"`
	Size     *int64            `json:"size,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

func newFileData(remotePath, origName string) FileData {
	return FileData{
		Path:     remotePath,
		OrigName: origName,
		Meta:     map[string]string{"_type": "gradio.FileData"},
	}
}

// GradioClient talks to a Gradio app (for example a Hugging Face Space) over its HTTP API.
type GradioClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGradioClient creates a client for the app rooted at baseURL. token may be empty.
func NewGradioClient(baseURL, token string, httpClient *http.Client) *GradioClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GradioClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (c *GradioClient) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *GradioClient) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gradio %s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &GradioStatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// UploadFile sends a local file to the app and returns a reference usable as a prediction input.
func (c *GradioClient) UploadFile(ctx context.Context, localPath string) (FileData, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return FileData{}, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filepath.Base(localPath))
	if err != nil {
		return FileData{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return FileData{}, fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	if err := mw.Close(); err != nil {
		return FileData{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return FileData{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req, "upload")
	if err != nil {
		return FileData{}, err
	}
	defer resp.Body.Close()

	var paths []string
	if err := json.NewDecoder(resp.Body).Decode(&paths); err != nil {
		return FileData{}, fmt.Errorf("gradio upload: invalid response: %w", err)
	}
	if len(paths) != 1 {
		return FileData{}, fmt.Errorf("gradio upload: expected 1 path, got %d", len(paths))
	}
	return newFileData(paths[0], filepath.Base(localPath)), nil
}

// Predict runs the named endpoint with positional inputs and waits for its outputs.
func (c *GradioClient) Predict(ctx context.Context, apiName string, data []interface{}) ([]json.RawMessage, error) {
	endpoint := c.baseURL + "/call/" + strings.TrimPrefix(apiName, "/")

	payload, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return nil, fmt.Errorf("gradio predict: failed to encode inputs: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "predict")
	if err != nil {
		return nil, err
	}
	var started struct {
		EventID string `json:"event_id"`
	}
	err = json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if err != nil || started.EventID == "" {
		return nil, fmt.Errorf("gradio predict: missing event id")
	}

	req, err = c.newRequest(ctx, http.MethodGet, endpoint+"/"+url.PathEscape(started.EventID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err = c.do(req, "result")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return readPredictionEvents(resp.Body)
}

// readPredictionEvents consumes a server-sent event stream until a terminal event.
func readPredictionEvents(r io.Reader) ([]json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				var outputs []json.RawMessage
				if err := json.Unmarshal([]byte(data), &outputs); err != nil {
					return nil, fmt.Errorf("gradio result: invalid outputs: %w", err)
				}
				return outputs, nil
			case "error":
				var msg string
				if data != "null" {
					if err := json.Unmarshal([]byte(data), &msg); err != nil {
						msg = data
					}
				}
				return nil, &GradioEventError{Message: msg}
			}
		case line == "":
			event = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gradio result: %w", err)
	}
	return nil, fmt.Errorf("gradio result: stream ended without a result")
}

// Download fetches the bytes of an output file and returns them with their MIME type.
func (c *GradioClient) Download(ctx context.Context, fd FileData) ([]byte, string, error) {
	fileURL := fd.URL
	if fileURL == "" {
		if fd.Path == "" {
			return nil, "", fmt.Errorf("gradio download: file has neither url nor path")
		}
		fileURL = c.baseURL + "/file=" + fd.Path
	}

	req, err := c.newRequest(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.do(req, "download")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("gradio download: %w", err)
	}

	mimeType := fd.MimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fd.Path))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
