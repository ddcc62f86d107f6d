package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yuanshang000/ds2api/internal/conf"
	"github.com/yuanshang000/ds2api/internal/model"
	"github.com/yuanshang000/ds2api/internal/op"
	"github.com/yuanshang000/ds2api/internal/server/auth"
	"github.com/yuanshang000/ds2api/internal/server/middleware"
	"github.com/yuanshang000/ds2api/internal/server/resp"
	"github.com/yuanshang000/ds2api/internal/server/router"
)

func init() {
	router.NewGroupRouter("/api/v1/admin").
		Use(middleware.RequireJSON()).
		AddRoute(
			router.NewRoute("/login", http.MethodPost).
				Handle(adminLogin),
		)
	router.NewGroupRouter("/api/v1/admin").
		Use(middleware.Auth()).
		AddRoute(
			router.NewRoute("/accounts", http.MethodGet).
				Handle(accountStatus),
		).
		AddRoute(
			router.NewRoute("/accounts/reset", http.MethodPost).
				Handle(accountReset),
		).
		AddRoute(
			router.NewRoute("/logs", http.MethodGet).
				Handle(requestLogs),
		)
}

type adminLoginRequest struct {
	Key    string `json:"key"`
	Expire int    `json:"expire"`
}

type adminLoginResponse struct {
	Token    string `json:"token"`
	ExpireAt string `json:"expire_at"`
}

func adminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.Error(c, http.StatusBadRequest, resp.ErrInvalidJSON)
		return
	}
	if !auth.VerifyAdminKey(req.Key) {
		resp.Error(c, http.StatusUnauthorized, resp.ErrUnauthorized)
		return
	}
	token, expire, err := auth.GenerateJWTToken(req.Expire)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, resp.ErrInternalServer)
		return
	}
	resp.Success(c, adminLoginResponse{Token: token, ExpireAt: expire})
}

func accountStatus(c *gin.Context) {
	resp.Success(c, deps.Pool.Status())
}

// accountReset rebuilds the pool from the configured accounts, merging any
// persisted upstream tokens. In-flight requests keep their checked-out
// accounts; releasing those later is a logged no-op.
func accountReset(c *gin.Context) {
	accounts := make([]*model.Account, 0, len(conf.AppConfig.Accounts))
	for _, a := range conf.AppConfig.Accounts {
		acc := &model.Account{
			Email:    a.Email,
			Mobile:   a.Mobile,
			Password: a.Password,
			Token:    a.Token,
		}
		if token, ok := op.AccountTokenGet(acc.Identifier()); ok && token != "" {
			acc.Token = token
		}
		accounts = append(accounts, acc)
	}
	deps.Pool.Reset(accounts)
	resp.Success(c, deps.Pool.Status())
}

func requestLogs(c *gin.Context) {
	rows, err := op.RequestLogList(c.Request.Context(), 200)
	if err != nil {
		resp.Error(c, http.StatusInternalServerError, resp.ErrDatabase)
		return
	}
	resp.Success(c, rows)
}
