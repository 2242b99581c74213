package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wadevries/sps/internal/planner"
	"github.com/wadevries/sps/internal/store"
)

// ErrorResponse is the JSON body of every non-2xx response. Code is a
// stable machine-readable discriminator; Error is the human-readable detail.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Stable error codes, one per class in the engine's error taxonomy.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeCycle            = "cycle"
	CodeConcurrent       = "concurrent_modification"
	CodeDependentsExist  = "dependents_exist"
	CodeHasChildren      = "has_children"
	CodeUnmetDependency  = "unmet_dependency"
	CodeInvalidStatus    = "invalid_status"
	CodeInvalidOperation = "invalid_operation"
	CodeInternal         = "internal"
)

// writeError maps a planner error onto a status code and writes the JSON
// body. Rejections of well-formed requests that name missing records are
// 404; structural conflicts (cycles, version races, blocked deletions) are
// 409; semantically impossible operations are 422. Anything untyped is an
// infrastructure failure and stays a 500.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// badRequest reports a request that failed shape validation before reaching
// the engine.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
}

func classify(err error) (int, string) {
	var (
		notFound   *planner.NotFoundError
		cycle      *planner.CycleError
		concurrent *planner.ConcurrentModificationError
		dependents *planner.DependentsExistError
		children   *planner.HasChildrenError
		unmet      *planner.UnmetDependencyError
		status     *planner.InvalidStatusError
		invalid    *planner.InvalidOperationError
	)
	switch {
	// Context reads bypass the planner and surface the store sentinel.
	case errors.As(err, &notFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.As(err, &cycle):
		return http.StatusConflict, CodeCycle
	case errors.As(err, &concurrent):
		return http.StatusConflict, CodeConcurrent
	case errors.As(err, &dependents):
		return http.StatusConflict, CodeDependentsExist
	case errors.As(err, &children):
		return http.StatusConflict, CodeHasChildren
	case errors.As(err, &unmet):
		return http.StatusUnprocessableEntity, CodeUnmetDependency
	case errors.As(err, &status):
		return http.StatusUnprocessableEntity, CodeInvalidStatus
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, CodeInvalidOperation
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
