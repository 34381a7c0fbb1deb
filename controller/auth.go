package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthlink/mediavault/apperr"
	"github.com/hearthlink/mediavault/middleware"
	"github.com/hearthlink/mediavault/request"
	"github.com/hearthlink/mediavault/response"
	"golang.org/x/crypto/bcrypt"
)

// AuthController holds the single configured account's credentials and the
// JWT secret used to sign bearer tokens. PasswordHash is a bcrypt hash of
// the configured password, computed once at startup by NewAuthController
// so the plaintext DEFAULT_PASSWORD env var never sits around compared
// directly against request bodies.
type AuthController struct {
	Username     string
	PasswordHash []byte
	JWTSecret    string
}

// NewAuthController hashes password once at startup.
func NewAuthController(username, password, jwtSecret string) (*AuthController, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AuthController{Username: username, PasswordHash: hash, JWTSecret: jwtSecret}, nil
}

func (a *AuthController) Login(c *gin.Context) {
	var req request.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, ErrParseRequest)
		return
	}

	if req.Username != a.Username || bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(req.Password)) != nil {
		writeError(c, apperr.New(apperr.Unauthorized, "invalid credentials"))
		return
	}

	token, err := middleware.GenerateToken(a.JWTSecret, req.Username)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "failed to generate token", err))
		return
	}

	c.JSON(http.StatusOK, response.Write(response.UserAuthResponse{
		Username: req.Username,
		Token:    token,
	}))
}
