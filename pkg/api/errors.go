package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/coordinator"
	"github.com/omegalab/clonenet/pkg/envelope"
	"github.com/omegalab/clonenet/pkg/integrity"
	"github.com/omegalab/clonenet/pkg/llm"
)

// respondError maps a pipeline error to the HTTP status of the error
// taxonomy and answers {success:false, error:<message>}. Errors never
// degrade to plausible fake responses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var (
		validation *integrity.ValidationError
		gate       *envelope.QualityGateError
		unknown    *coordinator.UnknownCloneError
		backendErr *llm.BackendError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, integrity.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.As(err, &gate):
		status = http.StatusBadRequest
	case errors.As(err, &unknown):
		status = http.StatusBadRequest
	case errors.Is(err, artifact.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &backendErr):
		status = http.StatusBadGateway
		if llm.IsTimeout(err) {
			status = http.StatusGatewayTimeout
		}
	case llm.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request pipeline failed", "error", err)
	}
	c.JSON(status, errorResponse{Success: false, Error: err.Error()})
}
