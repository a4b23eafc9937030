package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raushankrgupta/virtual-tryon-studio/models"
)

const (
	tryOnService = "tryon"

	// MissingImagesMessage is shown when either side of the try-on has no image.
	MissingImagesMessage = "Please select or upload both the human and garment images."
)

// GarmentFitter renders a garment onto a person.
type GarmentFitter interface {
	TryOn(ctx context.Context, req models.TryOnRequest) (*models.TryOnResult, error)
}

// TryOnClient calls the IDM-VTON try-on endpoint of a Gradio app.
type TryOnClient struct {
	gradio  *GradioClient
	apiName string
}

// NewTryOnClient binds the fitter to an endpoint name such as "/tryon".
func NewTryOnClient(gradio *GradioClient, apiName string) *TryOnClient {
	return &TryOnClient{gradio: gradio, apiName: apiName}
}

// imageEditorValue is the editor payload the endpoint expects for the person image:
// the photo as background with no drawn layers.
type imageEditorValue struct {
	Background FileData   `json:"background"`
	Layers     []FileData `json:"layers"`
	Composite  *FileData  `json:"composite"`
}

// TryOn uploads both images, runs the prediction and downloads the two outputs.
func (c *TryOnClient) TryOn(ctx context.Context, req models.TryOnRequest) (*models.TryOnResult, error) {
	human, err := c.gradio.UploadFile(ctx, req.HumanImage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to upload human image: %w", err)
	}
	garment, err := c.gradio.UploadFile(ctx, req.GarmentImage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to upload garment image: %w", err)
	}

	data := []interface{}{
		imageEditorValue{Background: human, Layers: []FileData{}},
		garment,
		req.Description,
		req.IsChecked,
		req.IsCheckedCrop,
		req.DenoiseSteps,
		req.Seed,
	}

	outputs, err := c.gradio.Predict(ctx, c.apiName, data)
	if err != nil {
		return nil, err
	}
	if len(outputs) < 2 {
		return nil, &models.ServiceError{
			Kind:    models.ErrKindMalformed,
			Service: tryOnService,
			Message: fmt.Sprintf("expected 2 outputs, got %d", len(outputs)),
		}
	}

	output, err := c.downloadOutput(ctx, outputs[0], "output")
	if err != nil {
		return nil, err
	}
	masked, err := c.downloadOutput(ctx, outputs[1], "masked")
	if err != nil {
		return nil, err
	}
	return &models.TryOnResult{Output: output, Masked: masked}, nil
}

func (c *TryOnClient) downloadOutput(ctx context.Context, raw json.RawMessage, label string) (models.Image, error) {
	var fd FileData
	if err := json.Unmarshal(raw, &fd); err != nil || (fd.Path == "" && fd.URL == "") {
		return models.Image{}, &models.ServiceError{
			Kind:    models.ErrKindMalformed,
			Service: tryOnService,
			Message: fmt.Sprintf("%s image is not a file", label),
			Err:     err,
		}
	}

	data, mimeType, err := c.gradio.Download(ctx, fd)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to download %s image: %w", label, err)
	}

	name := fd.OrigName
	if name == "" {
		name = label
	}
	return models.Image{Name: name, MIMEType: mimeType, Data: data}, nil
}

// VirtualTryOn checks that both images resolve, then makes exactly one fitter call.
// Every failure comes back as a *models.ServiceError.
func VirtualTryOn(ctx context.Context, fitter GarmentFitter, req models.TryOnRequest) (*models.TryOnResult, error) {
	if req.HumanImage.IsZero() || req.GarmentImage.IsZero() {
		return nil, &models.ServiceError{Kind: models.ErrKindValidation, Service: tryOnService, Message: MissingImagesMessage}
	}
	if err := req.ValidateParameters(); err != nil {
		return nil, &models.ServiceError{Kind: models.ErrKindValidation, Service: tryOnService, Message: err.Error()}
	}

	start := time.Now()
	result, err := fitter.TryOn(ctx, req)
	if err == nil && result == nil {
		err = &models.ServiceError{Kind: models.ErrKindMalformed, Service: tryOnService, Message: "empty result"}
	}
	if err != nil {
		serviceErr := ClassifyError(tryOnService, err)
		RecordRemoteCall(tryOnService, string(serviceErr.Kind), time.Since(start).Seconds())
		return nil, serviceErr
	}

	RecordRemoteCall(tryOnService, "ok", time.Since(start).Seconds())
	return result, nil
}
