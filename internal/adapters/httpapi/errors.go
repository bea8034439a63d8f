package httpapi

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stn/agent-stream-app/internal/adapters/fileformat"
	"github.com/stn/agent-stream-app/internal/adapters/importer"
	"github.com/stn/agent-stream-app/internal/adapters/settings"
	"github.com/stn/agent-stream-app/internal/app/dto"
	"github.com/stn/agent-stream-app/internal/app/services"
	"github.com/stn/agent-stream-app/internal/app/usecases"
	"github.com/stn/agent-stream-app/internal/core/agent"
	"github.com/stn/agent-stream-app/internal/core/coerce"
	"github.com/stn/agent-stream-app/internal/core/events"
	"github.com/stn/agent-stream-app/internal/core/flow"
	"github.com/stn/agent-stream-app/pkg/validation"
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{flow.ErrFlowNotFound, http.StatusNotFound},
	{flow.ErrNodeNotFound, http.StatusNotFound},
	{flow.ErrEdgeNotFound, http.StatusNotFound},
	{agent.ErrDefinitionNotFound, http.StatusNotFound},
	{fs.ErrNotExist, http.StatusNotFound},
	{flow.ErrFlowExists, http.StatusConflict},
	{flow.ErrDuplicateNode, http.StatusConflict},
	{flow.ErrDuplicateEdge, http.StatusConflict},
	{coerce.ErrCoercion, http.StatusUnprocessableEntity},
	{usecases.ErrCatalogUnavailable, http.StatusServiceUnavailable},
	{events.ErrRegistryClosed, http.StatusServiceUnavailable},
	{services.ErrImportNotConfigured, http.StatusServiceUnavailable},
	{flow.ErrInvalidFlowName, http.StatusBadRequest},
	{flow.ErrNilFlow, http.StatusBadRequest},
	{dto.ErrInvalidSavePolicy, http.StatusBadRequest},
	{dto.ErrInvalidInput, http.StatusBadRequest},
	{settings.ErrInvalidSettings, http.StatusBadRequest},
	{settings.ErrAgentTypeRequired, http.StatusBadRequest},
	{fileformat.ErrUnsupportedFormat, http.StatusBadRequest},
	{importer.ErrEmptyName, http.StatusBadRequest},
	{events.ErrInvalidKind, http.StatusBadRequest},
	{events.ErrInvalidAgentID, http.StatusBadRequest},
	{events.ErrInvalidKey, http.StatusBadRequest},
}

func statusFor(err error) int {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	if errors.Is(err, flow.ErrInvalidNodeID) || errors.Is(err, flow.ErrInvalidDefName) ||
		errors.Is(err, flow.ErrInvalidEdgeID) || errors.Is(err, flow.ErrInvalidSource) ||
		errors.Is(err, flow.ErrInvalidTarget) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err with its status. Coercion failures carry the failure list.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	resp := APIResponse{Success: false, Error: err.Error()}
	if errs, ok := coerce.AsErrors(err); ok {
		resp.Details = dto.CoercionFailures(errs)
	}
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Details = verrs
	}
	sendResponse(c, status, resp)
}
