package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type uploadPart struct {
	field    string
	filename string
	content  []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...uploadPart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postTryOn(t *testing.T, client *http.Client, endpoint string, fields map[string]string, files ...uploadPart) *http.Response {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	resp, err := client.Post(endpoint, contentType, body)
	require.NoError(t, err)
	return resp
}

func TestTryOnFormHandler_MissingImagesMakesNoCall(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"nothing selected", map[string]string{"description": "A stylish outfit"}},
		{"garment only", map[string]string{"garment_sample": "shirt.jpg"}},
		{"human only", map[string]string{"human_sample": "person1.jpg"}},
		{"unknown sample", map[string]string{"human_sample": "ghost.jpg", "garment_sample": "shirt.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			resp := postTryOn(t, env.client(t), env.server.URL+"/try-on", tt.fields)
			doc := parsePage(t, resp)

			assert.Equal(t, 0, env.fitter.Calls())
			assert.Equal(t, utils.MissingImagesMessage, strings.TrimSpace(doc.Find("#tryon-error").Text()))
			assert.Equal(t, 0, doc.Find("#output-image").Length())
		})
	}
}

func TestTryOnFormHandler_ShowsBothImages(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postTryOn(t, env.client(t), env.server.URL+"/try-on", map[string]string{
		"human_sample":   "person1.jpg",
		"garment_sample": "shirt.jpg",
	})
	doc := parsePage(t, resp)

	require.Equal(t, 1, env.fitter.Calls())
	assert.Equal(t, successResult().Output.DataURI(), doc.Find("#output-image").AttrOr("src", ""))
	assert.Equal(t, successResult().Masked.DataURI(), doc.Find("#masked-image").AttrOr("src", ""))
	assert.Equal(t, 0, doc.Find("#tryon-error").Length())
}

func TestTryOnFormHandler_ServiceFailureShownAsError(t *testing.T) {
	env := newTestEnv(t, false)
	env.fitter.result = nil
	env.fitter.err = &utils.GradioEventError{Message: "GPU quota exceeded"}

	resp := postTryOn(t, env.client(t), env.server.URL+"/try-on", map[string]string{
		"human_sample":   "person1.jpg",
		"garment_sample": "shirt.jpg",
	})
	doc := parsePage(t, resp)

	msg := doc.Find("#tryon-error").Text()
	assert.True(t, strings.HasPrefix(msg, "An error occurred: "), msg)
	assert.Contains(t, msg, "GPU quota exceeded")
	assert.Equal(t, 0, doc.Find("#output-image").Length())
}

func TestTryOnAPIHandler_DefaultsReachTheService(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postTryOn(t, env.client(t), env.server.URL+"/api/try-on", map[string]string{
		"human_sample":   "person1.jpg",
		"garment_sample": "dress.jpeg",
	})
	var body TryOnResponse
	decodeJSON(t, resp, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("output-bytes"), body.Output.Data)
	assert.Equal(t, []byte("masked-bytes"), body.Masked.Data)

	got := env.fitter.LastRequest()
	assert.Equal(t, "person1.jpg", got.HumanImage.Name)
	assert.Equal(t, filepath.Join(env.opts.HumanImagesDir, "person1.jpg"), got.HumanImage.Path)
	assert.Equal(t, models.SourceSample, got.GarmentImage.Source)
	assert.Equal(t, "A stylish outfit", got.Description)
	assert.True(t, got.IsChecked)
	assert.False(t, got.IsCheckedCrop)
	assert.Equal(t, 30, got.DenoiseSteps)
	assert.Equal(t, 42, got.Seed)
}

func TestTryOnAPIHandler_FormValuesReachTheService(t *testing.T) {
	env := newTestEnv(t, false)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, kv := range [][2]string{
		{"human_sample", "person2.png"},
		{"garment_sample", "shirt.jpg"},
		{"description", "Red summer dress"},
		{"is_checked", "false"},
		{"is_checked_crop", "false"},
		{"is_checked_crop", "true"},
		{"denoise_steps", "12"},
		{"seed", "7"},
	} {
		require.NoError(t, writer.WriteField(kv[0], kv[1]))
	}
	require.NoError(t, writer.Close())

	resp, err := env.client(t).Post(env.server.URL+"/api/try-on", writer.FormDataContentType(), body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := env.fitter.LastRequest()
	assert.Equal(t, "Red summer dress", got.Description)
	assert.False(t, got.IsChecked)
	assert.True(t, got.IsCheckedCrop)
	assert.Equal(t, 12, got.DenoiseSteps)
	assert.Equal(t, 7, got.Seed)
}

func TestTryOnAPIHandler_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"steps too high", map[string]string{"denoise_steps": "51"}},
		{"negative seed", map[string]string{"seed": "-1"}},
		{"steps not a number", map[string]string{"denoise_steps": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			tt.fields["human_sample"] = "person1.jpg"
			tt.fields["garment_sample"] = "shirt.jpg"

			resp := postTryOn(t, env.client(t), env.server.URL+"/api/try-on", tt.fields)
			var body map[string]string
			decodeJSON(t, resp, &body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, string(models.ErrKindValidation), body["kind"])
			assert.Equal(t, 0, env.fitter.Calls())
		})
	}
}

func TestTryOnAPIHandler_ServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   models.ErrorKind
	}{
		{"space unavailable", &utils.GradioStatusError{Op: "predict", StatusCode: 503, Body: "sleeping"}, http.StatusGatewayTimeout, models.ErrKindNetwork},
		{"rate limited", &utils.GradioStatusError{Op: "upload", StatusCode: 429}, http.StatusTooManyRequests, models.ErrKindQuota},
		{"bad token", &utils.GradioStatusError{Op: "upload", StatusCode: 401}, http.StatusBadGateway, models.ErrKindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			env.fitter.result = nil
			env.fitter.err = tt.err

			resp := postTryOn(t, env.client(t), env.server.URL+"/api/try-on", map[string]string{
				"human_sample":   "person1.jpg",
				"garment_sample": "shirt.jpg",
			})
			var body map[string]string
			decodeJSON(t, resp, &body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, string(tt.wantKind), body["kind"])
			assert.Equal(t, 1, env.fitter.Calls())
		})
	}
}

func TestTryOnAPIHandler_UploadIsMaterializedAndRemoved(t *testing.T) {
	env := newTestEnv(t, false)

	var seenPath string
	var seenContent []byte
	env.fitter.inspect = func(req models.TryOnRequest) {
		seenPath = req.HumanImage.Path
		seenContent, _ = os.ReadFile(req.HumanImage.Path)
	}

	resp := postTryOn(t, env.client(t), env.server.URL+"/api/try-on",
		map[string]string{"garment_sample": "shirt.jpg"},
		uploadPart{field: "human_image", filename: "me.PNG", content: []byte("my-photo")},
	)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := env.fitter.LastRequest()
	assert.Equal(t, models.SourceUpload, got.HumanImage.Source)
	assert.Equal(t, "me.PNG", got.HumanImage.Name)
	assert.Equal(t, []byte("my-photo"), seenContent)
	assert.True(t, strings.HasPrefix(seenPath, env.opts.UploadDir))

	_, err := os.Stat(seenPath)
	assert.True(t, os.IsNotExist(err))
}

func TestTryOnAPIHandler_RejectsUnsupportedUpload(t *testing.T) {
	env := newTestEnv(t, false)

	resp := postTryOn(t, env.client(t), env.server.URL+"/api/try-on",
		map[string]string{"garment_sample": "shirt.jpg"},
		uploadPart{field: "human_image", filename: "me.gif", content: []byte("GIF89a")},
	)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, env.fitter.Calls())
}

func TestTryOn_BusySessionIsRejected(t *testing.T) {
	env := newTestEnv(t, false)
	env.fitter.started = make(chan struct{})
	env.fitter.release = make(chan struct{})
	client := env.client(t)

	// establish the session cookie before going concurrent
	resp, err := client.Get(env.server.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()

	body, contentType := multipartBody(t, map[string]string{
		"human_sample":   "person1.jpg",
		"garment_sample": "shirt.jpg",
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstStatus int
	go func() {
		defer wg.Done()
		r, err := client.Post(env.server.URL+"/api/try-on", contentType, body)
		if err == nil {
			firstStatus = r.StatusCode
			r.Body.Close()
		}
	}()
	<-env.fitter.started

	second := postChatJSON(t, client, env.server.URL, `{"message":"Hi"}`)
	second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	// another session is not blocked
	other := env.client(t)
	env.chat.On("GenerateText", mock.Anything, "Hi").Return("Hello!", nil)
	third := postChatJSON(t, other, env.server.URL, `{"message":"Hi"}`)
	third.Body.Close()
	assert.Equal(t, http.StatusOK, third.StatusCode)

	close(env.fitter.release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, firstStatus)
	assert.Equal(t, 1, env.fitter.Calls())
}

func TestHistoryHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, false)

		resp, err := env.client(t).Get(env.server.URL + "/api/try-ons")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("records outcomes per session", func(t *testing.T) {
		env := newTestEnv(t, true)
		client := env.client(t)

		resp := postTryOn(t, client, env.server.URL+"/api/try-on", map[string]string{
			"human_sample":   "person1.jpg",
			"garment_sample": "shirt.jpg",
		})
		resp.Body.Close()
		resp = postTryOn(t, client, env.server.URL+"/api/try-on", map[string]string{"garment_sample": "shirt.jpg"})
		resp.Body.Close()

		resp, err := client.Get(env.server.URL + "/api/try-ons?limit=5")
		require.NoError(t, err)
		var body HistoryResponse
		decodeJSON(t, resp, &body)

		assert.Equal(t, int64(5), body.Limit)
		require.Len(t, body.TryOns, 2)
		assert.Equal(t, models.TryOnStatusCompleted, body.TryOns[0].Status)
		assert.Equal(t, "person1.jpg", body.TryOns[0].HumanImage)
		assert.Equal(t, models.TryOnStatusRejected, body.TryOns[1].Status)
		assert.Equal(t, models.ErrKindValidation, body.TryOns[1].ErrorKind)

		resp, err = env.client(t).Get(env.server.URL + "/api/try-ons")
		require.NoError(t, err)
		var otherBody HistoryResponse
		decodeJSON(t, resp, &otherBody)
		assert.Empty(t, otherBody.TryOns)
	})
}
