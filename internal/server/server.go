package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yuanshang000/ds2api/internal/conf"
	"github.com/yuanshang000/ds2api/internal/server/handlers"
	"github.com/yuanshang000/ds2api/internal/server/middleware"
	"github.com/yuanshang000/ds2api/internal/server/resp"
	"github.com/yuanshang000/ds2api/internal/server/router"
	"github.com/yuanshang000/ds2api/internal/utils/log"
)

var httpSrv http.Server

func Start(deps *handlers.Deps) error {
	if conf.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers.Init(deps)

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		resp.Error(c, http.StatusInternalServerError, resp.ErrInternalServer)
		c.Abort()
	}))

	if conf.IsDebug() {
		r.Use(middleware.Logger())
	}
	r.Use(middleware.Cors())

	if err := router.RegisterAll(r); err != nil {
		return err
	}

	httpSrv.Addr = fmt.Sprintf("%s:%d", conf.AppConfig.Server.Host, conf.AppConfig.Server.Port)
	httpSrv.Handler = r
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server listen and serve error: %v", err)
		}
	}()
	return nil
}

func Close() error {
	return httpSrv.Close()
}
