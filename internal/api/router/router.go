package router

import (
	"context"
	"strconv"

	"resume-agent-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, extractHandler *handler.ExtractHandler) {
	api := h.Group("/api/v1")

	api.POST("/extract", func(c context.Context, ctx *app.RequestContext) {
		var req handler.ExtractRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
			return
		}

		resp, err := extractHandler.HandleExtract(c, &req)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	})

	api.POST("/extract/batch", func(c context.Context, ctx *app.RequestContext) {
		var req handler.BatchExtractRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
			return
		}

		result, err := extractHandler.HandleBatchExtract(c, &req)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, result)
	})

	api.POST("/corrections", func(c context.Context, ctx *app.RequestContext) {
		var req handler.CorrectionRequest
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体解析失败"})
			return
		}

		if err := extractHandler.HandleCorrection(c, &req); err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	api.GET("/batches/:batch_id/outcomes", func(c context.Context, ctx *app.RequestContext) {
		batchID := ctx.Param("batch_id")
		limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

		outcomes, err := extractHandler.HandleBatchOutcomes(c, batchID, limit, offset)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		ctx.JSON(consts.StatusOK, utils.H{"batch_id": batchID, "outcomes": outcomes})
	})

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
