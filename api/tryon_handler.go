package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"github.com/raushankrgupta/virtual-tryon-studio/session"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
	"go.uber.org/zap"
)

// TryOnResponse is returned by POST /api/try-on. Image data is base64 encoded.
type TryOnResponse struct {
	Output models.Image `json:"output"`
	Masked models.Image `json:"masked"`
}

type tryOnSide struct {
	uploadField string
	sampleField string
	samplesDir  string
}

var (
	humanSide   = tryOnSide{uploadField: "human_image", sampleField: "human_sample"}
	garmentSide = tryOnSide{uploadField: "garment_image", sampleField: "garment_sample"}
)

func validationError(message string) *models.ServiceError {
	return &models.ServiceError{Kind: models.ErrKindValidation, Service: "tryon", Message: message}
}

// parseTryOnForm reads the multipart form into a request. Uploaded files are written
// to disk; the returned files must be cleaned up by the caller, also on error.
func (s *Server) parseTryOnForm(r *http.Request, requestID string, logMessageBuilder *strings.Builder) (models.TryOnRequest, []*models.MaterializedFile, error) {
	req := models.NewTryOnRequest()

	// two images plus the text fields
	r.Body = http.MaxBytesReader(nil, r.Body, 2*s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, nil, validationError(fmt.Sprintf("Error parsing form data: %v", err))
	}
	if r.PostForm == nil {
		if err := r.ParseForm(); err != nil {
			return req, nil, validationError(fmt.Sprintf("Error parsing form data: %v", err))
		}
	}

	if values, ok := r.PostForm["description"]; ok && len(values) > 0 {
		req.Description = values[len(values)-1]
	}
	req.IsChecked = formBool(r, "is_checked", req.IsChecked)
	req.IsCheckedCrop = formBool(r, "is_checked_crop", req.IsCheckedCrop)

	var err error
	if req.DenoiseSteps, err = formInt(r, "denoise_steps", req.DenoiseSteps); err != nil {
		return req, nil, validationError("denoise_steps must be a whole number")
	}
	if req.Seed, err = formInt(r, "seed", req.Seed); err != nil {
		return req, nil, validationError("seed must be a whole number")
	}
	if err := req.ValidateParameters(); err != nil {
		return req, nil, validationError(err.Error())
	}

	var files []*models.MaterializedFile
	human := humanSide
	human.samplesDir = s.opts.HumanImagesDir
	garment := garmentSide
	garment.samplesDir = s.opts.GarmentImagesDir

	for _, side := range []struct {
		cfg tryOnSide
		ref *models.ImageRef
	}{{human, &req.HumanImage}, {garment, &req.GarmentImage}} {
		ref, file, err := s.resolveImage(r, requestID, side.cfg, logMessageBuilder)
		if file != nil {
			files = append(files, file)
		}
		if err != nil {
			return req, files, err
		}
		*side.ref = ref
	}

	return req, files, nil
}

// resolveImage prefers an uploaded file and falls back to the selected sample.
// An unresolvable side yields a zero reference, not an error.
func (s *Server) resolveImage(r *http.Request, requestID string, side tryOnSide, logMessageBuilder *strings.Builder) (models.ImageRef, *models.MaterializedFile, error) {
	if r.MultipartForm != nil {
		if headers := r.MultipartForm.File[side.uploadField]; len(headers) > 0 {
			header := headers[0]
			if !isAllowedImage(header.Filename) {
				return models.ImageRef{}, nil, validationError(fmt.Sprintf("%s must be a png, jpg or jpeg file", header.Filename))
			}
			src, err := header.Open()
			if err != nil {
				return models.ImageRef{}, nil, fmt.Errorf("error retrieving file: %w", err)
			}
			defer src.Close()

			file, err := utils.MaterializeUpload(s.opts.UploadDir, requestID, header.Filename, src)
			if err != nil {
				return models.ImageRef{}, nil, err
			}
			utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Saved upload %s (%d bytes)", file.Name, file.Size))
			return file.Ref(), file, nil
		}
	}

	name := r.FormValue(side.sampleField)
	if name == "" {
		return models.ImageRef{}, nil, nil
	}
	samples, err := utils.LoadImagesFromDirectory(side.samplesDir)
	if err != nil {
		utils.AddToLogMessage(logMessageBuilder, err.Error())
		return models.ImageRef{}, nil, nil
	}
	path, ok := samples[name]
	if !ok {
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Unknown sample %q", name))
		return models.ImageRef{}, nil, nil
	}
	return models.ImageRef{Name: name, Path: path, Source: models.SourceSample}, nil, nil
}

func isAllowedImage(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

func formBool(r *http.Request, key string, defaultValue bool) bool {
	values := r.PostForm[key]
	if len(values) == 0 {
		return defaultValue
	}
	v := values[len(values)-1]
	if v == "on" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func formInt(r *http.Request, key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(r.PostForm.Get(key))
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

// runTryOn executes one try-on for the session and records the outcome.
func (s *Server) runTryOn(ctx context.Context, sess *session.Session, req models.TryOnRequest, logMessageBuilder *strings.Builder) (*models.TryOnResult, *models.ServiceError) {
	utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Try-On Request: Human=%s(%s), Garment=%s(%s), Steps=%d, Seed=%d",
		req.HumanImage.Name, req.HumanImage.Source, req.GarmentImage.Name, req.GarmentImage.Source, req.DenoiseSteps, req.Seed))

	record := models.NewTryOnRecord(sess.ID, req)
	start := time.Now()

	tryOnCtx, cancel := context.WithTimeout(ctx, s.opts.TryOnTimeout)
	defer cancel()

	result, err := utils.VirtualTryOn(tryOnCtx, s.fitter, req)
	record.DurationMs = time.Since(start).Milliseconds()

	var serviceErr *models.ServiceError
	if err != nil {
		serviceErr = utils.ClassifyError("tryon", err)
		record.ErrorKind = serviceErr.Kind
		record.ErrorMessage = serviceErr.Error()
		record.Status = models.TryOnStatusFailed
		if serviceErr.Kind == models.ErrKindValidation {
			record.Status = models.TryOnStatusRejected
		}
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Try-on failed (%s): %v", serviceErr.Kind, serviceErr))
	} else {
		record.Status = models.TryOnStatusCompleted
		utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Try-on completed in %dms", record.DurationMs))
		if s.archive != nil {
			outputKey, maskedKey, archiveErr := s.archive.ArchiveResult(ctx, sess.ID, result)
			if archiveErr != nil {
				utils.AddToLogMessage(logMessageBuilder, fmt.Sprintf("Failed to archive result: %v", archiveErr))
			}
			record.OutputKey, record.MaskedKey = outputKey, maskedKey
		}
	}

	if s.history != nil {
		if historyErr := s.history.RecordTryOn(ctx, record); historyErr != nil {
			// the result is still returned to the user
			s.logger.Warn("failed to save try-on record", zap.Error(historyErr), zap.String("session_id", sess.ID))
		}
	}

	return result, serviceErr
}

// displayMessage renders a try-on failure for the page.
func displayMessage(err *models.ServiceError) string {
	if err.Kind == models.ErrKindValidation {
		return err.UserMessage()
	}
	return "An error occurred: " + err.Error()
}

func cleanupUploads(files []*models.MaterializedFile, keep bool, logger *zap.Logger) {
	if keep {
		return
	}
	for _, f := range files {
		if err := f.Cleanup(); err != nil {
			logger.Warn("failed to remove upload", zap.Error(err))
		}
	}
}

// TryOnFormHandler handles POST /try-on from the page. The outcome is kept in the
// session and shown after the redirect.
func (s *Server) TryOnFormHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	requestID := chimiddleware.GetReqID(r.Context())
	defer utils.FlushLogMessage(s.logger, &logMessageBuilder, requestID)
	utils.AddToLogMessage(&logMessageBuilder, "[Virtual Try-On Form]")

	sess := GetSessionFromContext(r.Context())
	if !sess.TryBegin() {
		utils.AddToLogMessage(&logMessageBuilder, busyMessage)
		http.Error(w, busyMessage, http.StatusConflict)
		return
	}
	defer sess.End()

	req, files, err := s.parseTryOnForm(r, requestID, &logMessageBuilder)
	defer cleanupUploads(files, s.opts.KeepUploads, s.logger)

	if err != nil {
		sess.SetTryOnOutcome(nil, displayMessage(utils.ClassifyError("tryon", err)))
	} else {
		result, serviceErr := s.runTryOn(r.Context(), sess, req, &logMessageBuilder)
		if serviceErr != nil {
			sess.SetTryOnOutcome(nil, displayMessage(serviceErr))
		} else {
			sess.SetTryOnOutcome(result, "")
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TryOnAPIHandler handles POST /api/try-on
func (s *Server) TryOnAPIHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	requestID := chimiddleware.GetReqID(r.Context())
	defer utils.FlushLogMessage(s.logger, &logMessageBuilder, requestID)
	utils.AddToLogMessage(&logMessageBuilder, "[Virtual Try-On API]")

	sess := GetSessionFromContext(r.Context())
	if !sess.TryBegin() {
		utils.RespondError(w, &logMessageBuilder, busyMessage, http.StatusConflict)
		return
	}
	defer sess.End()

	req, files, err := s.parseTryOnForm(r, requestID, &logMessageBuilder)
	defer cleanupUploads(files, s.opts.KeepUploads, s.logger)
	if err != nil {
		serviceErr := utils.ClassifyError("tryon", err)
		respondServiceError(w, &logMessageBuilder, serviceErr)
		return
	}

	result, serviceErr := s.runTryOn(r.Context(), sess, req, &logMessageBuilder)
	if serviceErr != nil {
		respondServiceError(w, &logMessageBuilder, serviceErr)
		return
	}

	sess.SetTryOnOutcome(result, "")
	utils.RespondJSON(w, http.StatusOK, TryOnResponse{Output: result.Output, Masked: result.Masked})
}

func respondServiceError(w http.ResponseWriter, logMessageBuilder *strings.Builder, err *models.ServiceError) {
	utils.AddToLogMessage(logMessageBuilder, err.Error())
	utils.RespondJSON(w, utils.HTTPStatus(err.Kind), map[string]string{
		"error": err.UserMessage(),
		"kind":  string(err.Kind),
	})
}
