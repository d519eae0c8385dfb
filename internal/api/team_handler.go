package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/TeamMatch/internal/model"
	"github.com/Gopher0727/TeamMatch/internal/service"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

type TeamHandler struct {
	teams service.ITeamService
	log   *logger.Logger
}

func NewTeamHandler(teams service.ITeamService, log *logger.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, log: log}
}

type joinTeamRequest struct {
	TeamID   int64  `json:"teamId" binding:"required"`
	Password string `json:"password"`
}

type teamIDRequest struct {
	TeamID int64 `json:"teamId" binding:"required"`
}

type teamMemberRequest struct {
	TeamID int64 `json:"teamId" binding:"required"`
	UserID int64 `json:"userId" binding:"required"`
}

// withCaller resolves the caller and runs fn; every team route needs one.
func (h *TeamHandler) withCaller(c *gin.Context, fn func(callerID int64) (any, error)) {
	id, err := mustIdentity(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	data, err := fn(id.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, data)
}

func (h *TeamHandler) Create(c *gin.Context) {
	var req model.TeamCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return h.teams.CreateTeam(c.Request.Context(), callerID, &req)
	})
}

func (h *TeamHandler) Delete(c *gin.Context) {
	teamID, err := strconv.ParseInt(c.Param("teamId"), 10, 64)
	if err != nil || teamID <= 0 {
		fail(c, h.log, errcode.ErrParams.WithMessage("teamId must be a positive integer"))
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return true, h.teams.DeleteTeam(c.Request.Context(), callerID, teamID)
	})
}

func (h *TeamHandler) Update(c *gin.Context) {
	var patch model.TeamPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return true, h.teams.UpdateTeam(c.Request.Context(), callerID, &patch)
	})
}

func (h *TeamHandler) Get(c *gin.Context) {
	teamID, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || teamID <= 0 {
		fail(c, h.log, errcode.ErrParams.WithMessage("id must be a positive integer"))
		return
	}

	team, err := h.teams.GetTeam(c.Request.Context(), teamID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, h.teams.GetSafeTeam(team))
}

func (h *TeamHandler) List(c *gin.Context) {
	var q model.TeamQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return h.teams.ListTeams(c.Request.Context(), callerID, &q)
	})
}

func (h *TeamHandler) Page(c *gin.Context) {
	var q model.TeamQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return h.teams.PageTeams(c.Request.Context(), callerID, &q)
	})
}

func (h *TeamHandler) Join(c *gin.Context) {
	var req joinTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return true, h.teams.JoinTeam(c.Request.Context(), callerID, req.TeamID, req.Password)
	})
}

func (h *TeamHandler) Exit(c *gin.Context) {
	var req teamIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return true, h.teams.ExitTeam(c.Request.Context(), callerID, req.TeamID)
	})
}

func (h *TeamHandler) ChangeLeader(c *gin.Context) {
	var req teamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return true, h.teams.ChangeLeader(c.Request.Context(), callerID, req.TeamID, req.UserID)
	})
}

func (h *TeamHandler) Kick(c *gin.Context) {
	var req teamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}
	h.withCaller(c, func(callerID int64) (any, error) {
		return true, h.teams.KickOut(c.Request.Context(), callerID, req.TeamID, req.UserID)
	})
}
