package response

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/karatrack-backend/internal/platform/apierr"
)

// RespondErr maps err to its HTTP status and code; untyped errors become
// 500 internal_error.
func RespondErr(c *gin.Context, err error) {
	ae := apierr.From(err)
	RespondError(c, ae.Status, ae.Code, err)
}
