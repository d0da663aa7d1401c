package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/groupbuy/api/transport"
	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/pkg/httpcontext"
	storeUC "github.com/fastygo/groupbuy/usecase/store"
)

type CampaignHandler struct {
	baseHandler
	uc *storeUC.UseCase
}

func NewCampaignHandler(uc *storeUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List campaigns
// @Tags campaigns
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) List(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	campaigns, err := h.uc.ListCampaigns(stdCtx)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewCampaignList(campaigns, h.now()))
}

// @Summary Get campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) Get(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	c, err := h.uc.GetCampaign(stdCtx, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewCampaignResponse(c, h.now()))
}

// @Summary Create campaign
// @Tags campaigns
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) Create(ctx *fasthttp.RequestCtx) {
	var req transport.CampaignRequest
	if !h.decode(ctx, &req) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.CreateCampaign(stdCtx, req.Campaign())
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, transport.NewCampaignResponse(created, h.now()))
}

// @Summary Update campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id} [put]
func (h *CampaignHandler) Update(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	var patch domain.Patch
	if !h.decode(ctx, &patch) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.UpdateCampaign(stdCtx, id, patch)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewCampaignResponse(updated, h.now()))
}

// @Summary Delete campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id} [delete]
func (h *CampaignHandler) Delete(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.DeleteCampaign(stdCtx, id); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Join campaign
// @Tags campaigns
// @Router /api/v1/campaigns/{id}/participants [post]
func (h *CampaignHandler) Join(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}
	var req transport.JoinRequest
	if !h.decode(ctx, &req) {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	p, err := h.uc.JoinCampaign(stdCtx, id, req.Participant())
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, p)
}
