package poll

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"poll-service/internal/apperror"
	"poll-service/internal/server/middleware"
)

// Handler exposes the poll aggregation service over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type voteRequest struct {
	OptionID string `json:"optionId" binding:"required"`
}

// List godoc
// @Summary      List all polls
// @Description  Returns all polls newest-first plus the caller's own votes and likes
// @Tags         polls
// @Produce      json
// @Success      200  {object}  poll.ListResult
// @Router       /polls [get]
func (h *Handler) List(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())

	result, err := h.service.List(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get godoc
// @Summary      Get a single poll
// @Tags         polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID"
// @Success      200  {object}  poll.View
// @Failure      404  {object}  map[string]string
// @Router       /polls/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())

	view, err := h.service.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Create godoc
// @Summary      Create a poll
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        poll  body  poll.CreateInput  true  "Poll to create"
// @Success      201  {object}  poll.Poll
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Security     BearerAuth
// @Router       /polls [post]
func (h *Handler) Create(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())
	if caller == nil {
		respondError(c, apperror.New(apperror.KindUnauthorized, "authentication required"))
		return
	}

	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperror.Wrap(apperror.KindValidation, "invalid request body", err))
		return
	}

	p, err := h.service.Create(c.Request.Context(), *caller, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// CastVote godoc
// @Summary      Cast a vote
// @Description  Records an immutable vote; voting twice returns 409 with the recorded option
// @Tags         polls
// @Accept       json
// @Produce      json
// @Param        id    path  string       true  "Poll ID"
// @Param        vote  body  voteRequest  true  "Option to vote for"
// @Success      200  {object}  poll.VoteResult
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Security     BearerAuth
// @Router       /polls/{id}/vote [post]
func (h *Handler) CastVote(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())
	if caller == nil {
		respondError(c, apperror.New(apperror.KindUnauthorized, "authentication required"))
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.Wrap(apperror.KindValidation, "optionId is required", err))
		return
	}

	result, err := h.service.CastVote(c.Request.Context(), *caller, c.Param("id"), req.OptionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ToggleLike godoc
// @Summary      Toggle a like
// @Tags         polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID"
// @Success      200  {object}  poll.LikeResult
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /polls/{id}/like [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())
	if caller == nil {
		respondError(c, apperror.New(apperror.KindUnauthorized, "authentication required"))
		return
	}

	result, err := h.service.ToggleLike(c.Request.Context(), *caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete godoc
// @Summary      Delete a poll
// @Description  Deletes a poll and all its votes and likes; creator only
// @Tags         polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID"
// @Success      200  {object}  map[string]bool
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /polls/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())
	if caller == nil {
		respondError(c, apperror.New(apperror.KindUnauthorized, "authentication required"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), *caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Reconcile godoc
// @Summary      Reconcile poll tallies
// @Description  Recomputes vote and like counters from their source records; creator only
// @Tags         polls
// @Produce      json
// @Param        id  path  string  true  "Poll ID"
// @Success      200  {object}  poll.Poll
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /polls/{id}/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	caller := middleware.CallerFromContext(c.Request.Context())
	if caller == nil {
		respondError(c, apperror.New(apperror.KindUnauthorized, "authentication required"))
		return
	}

	p, err := h.service.Reconcile(c.Request.Context(), *caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": p})
}

func respondError(c *gin.Context, err error) {
	body := gin.H{
		"error": apperror.Message(err),
		"code":  apperror.KindOf(err),
	}

	var voted *AlreadyVotedError
	if errors.As(err, &voted) {
		body["optionId"] = voted.OptionID
	}

	c.JSON(apperror.Status(err), body)
}
