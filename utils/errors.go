package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

// ClassifyError wraps err in a ServiceError whose kind reflects the failure.
func ClassifyError(service string, err error) *models.ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *models.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	return &models.ServiceError{Kind: errorKind(err), Service: service, Err: err}
}

func errorKind(err error) models.ErrorKind {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return models.ErrKindBlocked
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return kindForStatus(code, apiErr.Error())
		}
		if st := apiErr.GRPCStatus(); st != nil {
			return kindForGRPC(st.Code(), st.Message())
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return kindForStatus(gErr.Code, gErr.Message)
	}

	var statusErr *GradioStatusError
	if errors.As(err, &statusErr) {
		return kindForStatus(statusErr.StatusCode, statusErr.Body)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.ErrKindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.ErrKindNetwork
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") {
		return models.ErrKindQuota
	}
	return models.ErrKindUnknown
}

func kindForStatus(code int, message string) models.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return models.ErrKindAuth
	case code == http.StatusTooManyRequests:
		return models.ErrKindQuota
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "api key"):
		return models.ErrKindAuth
	case code >= 400 && code < 500:
		return models.ErrKindMalformed
	case code >= 500:
		return models.ErrKindNetwork
	}
	return models.ErrKindUnknown
}

func kindForGRPC(code codes.Code, message string) models.ErrorKind {
	switch code {
	case codes.Unauthenticated, codes.PermissionDenied:
		return models.ErrKindAuth
	case codes.ResourceExhausted:
		return models.ErrKindQuota
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(message), "api key") {
			return models.ErrKindAuth
		}
		return models.ErrKindMalformed
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return models.ErrKindNetwork
	}
	return models.ErrKindUnknown
}

// HTTPStatus maps an error kind to the status returned by the JSON API.
func HTTPStatus(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindValidation:
		return http.StatusBadRequest
	case models.ErrKindQuota:
		return http.StatusTooManyRequests
	case models.ErrKindNetwork:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
