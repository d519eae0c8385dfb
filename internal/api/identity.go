package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

const identityKey = "teammatch.identity"

// Identity is the authenticated caller resolved from the session token.
// TTL is what was left of the token when the request arrived.
type Identity struct {
	UserID   int64
	Username string
	TokenID  string
	TTL      time.Duration
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(identityKey, id)
}

// CurrentIdentity returns the caller stored by JWTAuth.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func mustIdentity(c *gin.Context) (Identity, error) {
	id, ok := CurrentIdentity(c)
	if !ok || id.UserID <= 0 {
		return Identity{}, errcode.ErrNotLogin
	}
	return id, nil
}
