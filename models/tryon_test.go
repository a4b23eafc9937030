package models

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryOnRequest_ValidateParameters(t *testing.T) {
	tests := []struct {
		name    string
		steps   int
		seed    int
		wantErr bool
	}{
		{"defaults", DefaultDenoiseSteps, DefaultSeed, false},
		{"lower bound", 0, 0, false},
		{"upper bound", 50, 1 << 30, false},
		{"too many steps", 51, 0, true},
		{"negative steps", -1, 0, true},
		{"negative seed", 30, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewTryOnRequest()
			req.DenoiseSteps = tt.steps
			req.Seed = tt.seed
			err := req.ValidateParameters()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTryOnRequest_Defaults(t *testing.T) {
	req := NewTryOnRequest()
	assert.Equal(t, "A stylish outfit", req.Description)
	assert.True(t, req.IsChecked)
	assert.False(t, req.IsCheckedCrop)
	assert.Equal(t, 30, req.DenoiseSteps)
	assert.Equal(t, 42, req.Seed)
	assert.True(t, req.HumanImage.IsZero())
}

func TestImage_DataURI(t *testing.T) {
	img := Image{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	uri := img.DataURI()

	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	assert.NoError(t, err)
	assert.Equal(t, img.Data, decoded)
}

func TestServiceError_UserMessage(t *testing.T) {
	v := &ServiceError{Kind: ErrKindValidation, Service: "tryon", Message: "Please select or upload both the human and garment images."}
	assert.Equal(t, "Please select or upload both the human and garment images.", v.UserMessage())

	n := &ServiceError{Kind: ErrKindNetwork, Service: "tryon", Message: "upload failed"}
	assert.Equal(t, "tryon: upload failed", n.UserMessage())
}
