package controller

import (
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// currentActor resolves the caller, writing a 401 when there is none.
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{ID: user.UserID, Role: user.Role}, true
}

func pagination(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
