package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/google/uuid"

	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/internal/repository"
	xhttp "github.com/leaseline/lead-gateway/pkg/http"
)

type LeadService interface {
	CreateLead(ctx context.Context, req model.CreateLeadRequest) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type ReplyService interface {
	LogReply(ctx context.Context, req model.ReplyRequest) (*model.Message, error)
}

// APIPrefix is the mount point for every route group; the reply redirect
// must resolve under it.
const APIPrefix = "/api/v1"

type MessageHandler struct {
	leads   LeadService
	replies ReplyService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.GET("/messages", h.ListMessages)
	e.POST("/messages/create-lead", h.CreateLead)
	e.POST("/messages/reply/{message_id}", h.LogReply)
}

func NewMessageHandler(leads LeadService, replies ReplyService) *MessageHandler {
	return &MessageHandler{
		leads:   leads,
		replies: replies,
	}
}

type createLeadRequest struct {
	LeadMessage string `json:"lead_message"`
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

// ListMessages returns the reply worklist: unreplied leads, newest first,
// unless filters say otherwise.
func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	f := model.MessageFilter{
		Unreplied: true,
		Desc:      true,
	}

	if v := query(ctx, "all"); strings.EqualFold(v, "true") {
		f.Unreplied = false
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "asc") {
		f.Desc = false
	}

	items, total, err := h.leads.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

// CreateLead accepts an optional lead_message; an absent or blank one makes
// the shopper agent write the lead.
func (h *MessageHandler) CreateLead(ctx *xhttp.RequestCtx) {
	var req createLeadRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := readJSON(ctx, &req); err != nil {
			writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}

	msg, err := h.leads.CreateLead(ctx, model.CreateLeadRequest{LeadMessage: req.LeadMessage})
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, msg)
}

// LogReply records the form-posted reply and bounces the browser back to the
// worklist.
func (h *MessageHandler) LogReply(ctx *xhttp.RequestCtx) {
	rawID, _ := ctx.UserValue("message_id").(string)
	messageID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(ctx, xhttp.StatusNotFound, "invalid message id")
		return
	}

	response := string(ctx.PostArgs().Peek("response_message"))
	if response == "" {
		// JSON fallback for non-form clients.
		var body struct {
			ResponseMessage string `json:"response_message"`
		}
		if err := readJSON(ctx, &body); err == nil {
			response = body.ResponseMessage
		}
	}

	_, err = h.replies.LogReply(ctx, model.ReplyRequest{
		MessageID:       messageID,
		ResponseMessage: response,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrEmptyResponse):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(ctx, xhttp.StatusNotFound, "message not found")
		case errors.Is(err, repository.ErrAlreadyReplied):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		default:
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		}
		return
	}

	ctx.Response.Header.Set("Location", APIPrefix+"/messages")
	ctx.Response.SetStatusCode(xhttp.StatusSeeOther)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
