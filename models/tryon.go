package models

import (
	"encoding/base64"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultDescription  = "A stylish outfit"
	DefaultDenoiseSteps = 30
	DefaultSeed         = 42
	MinDenoiseSteps     = 0
	MaxDenoiseSteps     = 50
)

// ImageSource says where an image reference came from
type ImageSource string

const (
	SourceSample ImageSource = "sample"
	SourceUpload ImageSource = "upload"
)

// ImageRef points at an image on local disk, either a bundled sample or a materialized upload.
type ImageRef struct {
	Name   string      `json:"name"`
	Path   string      `json:"-"`
	Source ImageSource `json:"source"`
}

// IsZero reports whether the reference resolves to nothing.
func (r ImageRef) IsZero() bool {
	return r.Path == ""
}

// TryOnRequest holds everything sent to the garment fitting service
type TryOnRequest struct {
	HumanImage    ImageRef `json:"human_image"`
	GarmentImage  ImageRef `json:"garment_image"`
	Description   string   `json:"description"`
	IsChecked     bool     `json:"is_checked"`
	IsCheckedCrop bool     `json:"is_checked_crop"`
	DenoiseSteps  int      `json:"denoise_steps"`
	Seed          int      `json:"seed"`
}

// NewTryOnRequest returns a request carrying the form defaults.
func NewTryOnRequest() TryOnRequest {
	return TryOnRequest{
		Description:  DefaultDescription,
		IsChecked:    true,
		DenoiseSteps: DefaultDenoiseSteps,
		Seed:         DefaultSeed,
	}
}

// ValidateParameters checks the numeric ranges the form enforces.
func (r TryOnRequest) ValidateParameters() error {
	if r.DenoiseSteps < MinDenoiseSteps || r.DenoiseSteps > MaxDenoiseSteps {
		return fmt.Errorf("denoise steps must be between %d and %d", MinDenoiseSteps, MaxDenoiseSteps)
	}
	if r.Seed < 0 {
		return fmt.Errorf("seed must be zero or greater")
	}
	return nil
}

// Image is a decoded image returned by the fitting service
type Image struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// DataURI encodes the image for inline display.
func (i Image) DataURI() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// TryOnResult is the pair of images returned for one try-on.
type TryOnResult struct {
	Output Image `json:"output"`
	Masked Image `json:"masked"`
}

// TryOn is the history record of one try-on attempt. Images are only referenced
// when the archive is enabled.
type TryOn struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID     string             `bson:"session_id" json:"session_id"`
	HumanImage    string             `bson:"human_image" json:"human_image"`
	HumanSource   ImageSource        `bson:"human_source" json:"human_source"`
	GarmentImage  string             `bson:"garment_image" json:"garment_image"`
	GarmentSource ImageSource        `bson:"garment_source" json:"garment_source"`
	Description   string             `bson:"description" json:"description"`
	IsChecked     bool               `bson:"is_checked" json:"is_checked"`
	IsCheckedCrop bool               `bson:"is_checked_crop" json:"is_checked_crop"`
	DenoiseSteps  int                `bson:"denoise_steps" json:"denoise_steps"`
	Seed          int                `bson:"seed" json:"seed"`
	Status        string             `bson:"status" json:"status"` // completed, failed, rejected
	ErrorKind     ErrorKind          `bson:"error_kind,omitempty" json:"error_kind,omitempty"`
	ErrorMessage  string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	OutputKey     string             `bson:"output_key,omitempty" json:"output_key,omitempty"`
	MaskedKey     string             `bson:"masked_key,omitempty" json:"masked_key,omitempty"`
	DurationMs    int64              `bson:"duration_ms" json:"duration_ms"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

const (
	TryOnStatusCompleted = "completed"
	TryOnStatusFailed    = "failed"
	TryOnStatusRejected  = "rejected"
)

// NewTryOnRecord builds a history record from a request.
func NewTryOnRecord(sessionID string, req TryOnRequest) TryOn {
	return TryOn{
		ID:            primitive.NewObjectID(),
		SessionID:     sessionID,
		HumanImage:    req.HumanImage.Name,
		HumanSource:   req.HumanImage.Source,
		GarmentImage:  req.GarmentImage.Name,
		GarmentSource: req.GarmentImage.Source,
		Description:   req.Description,
		IsChecked:     req.IsChecked,
		IsCheckedCrop: req.IsCheckedCrop,
		DenoiseSteps:  req.DenoiseSteps,
		Seed:          req.Seed,
		CreatedAt:     time.Now(),
	}
}
