package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/TeamMatch/internal/model"
	"github.com/Gopher0727/TeamMatch/internal/service"
	"github.com/Gopher0727/TeamMatch/middleware/jwt"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

type UserHandler struct {
	users    service.IUserService
	tokens   *jwt.TokenManager
	denylist jwt.Denylist
	log      *logger.Logger
}

func NewUserHandler(users service.IUserService, tokens *jwt.TokenManager, denylist jwt.Denylist, log *logger.Logger) *UserHandler {
	if denylist == nil {
		denylist = jwt.NopDenylist{}
	}
	return &UserHandler{users: users, tokens: tokens, denylist: denylist, log: log}
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}

	id, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, id)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.log, err)
		return
	}

	user, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		fail(c, h.log, errcode.ErrSystem.Wrap(err))
		return
	}
	success(c, LoginResponse{ID: user.ID, Username: user.Username, Token: token})
}

func (h *UserHandler) Current(c *gin.Context) {
	id, err := mustIdentity(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	user, err := h.users.GetCurrent(c.Request.Context(), id.UserID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, user)
}

// Logout revokes the presented token until it would have expired.
func (h *UserHandler) Logout(c *gin.Context) {
	id, err := mustIdentity(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	if err := h.denylist.Revoke(c.Request.Context(), id.TokenID, id.TTL); err != nil {
		fail(c, h.log, errcode.ErrSystem.Wrap(err))
		return
	}
	h.log.InfoContext(c.Request.Context(), "user logged out", zap.String("jti", id.TokenID))
	success(c, true)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	id, err := mustIdentity(c)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	var patch model.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, h.log, err)
		return
	}

	if err := h.users.UpdateProfile(c.Request.Context(), id.UserID, &patch); err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, true)
}

// SetStatus handles POST /user/status/:status?id=, admin only.
func (h *UserHandler) SetStatus(c *gin.Context) {
	status, err := strconv.ParseInt(c.Param("status"), 10, 8)
	if err != nil {
		fail(c, h.log, errcode.ErrParams.WithMessage("status must be 0 or 1"))
		return
	}
	userID, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || userID <= 0 {
		fail(c, h.log, errcode.ErrParams.WithMessage("id is required"))
		return
	}

	if err := h.users.SetAccountStatus(c.Request.Context(), userID, int8(status)); err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, true)
}

// SearchByTags accepts tagNameList repeated or comma separated.
func (h *UserHandler) SearchByTags(c *gin.Context) {
	var page model.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, h.log, err)
		return
	}

	var tags []string
	for _, raw := range c.QueryArray("tagNameList") {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	result, err := h.users.SearchByTags(c.Request.Context(), tags, page)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, result)
}

func (h *UserHandler) SearchByUsername(c *gin.Context) {
	var page model.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, h.log, err)
		return
	}

	result, err := h.users.SearchByUsername(c.Request.Context(), c.Query("username"), page)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, result)
}

func (h *UserHandler) Recommend(c *gin.Context) {
	var page model.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, h.log, err)
		return
	}

	result, err := h.users.Recommend(c.Request.Context(), page)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	success(c, result)
}
