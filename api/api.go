/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/api/middleware"
	"github.com/blnkfinance/tally/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	tally  *tally.Tally
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	ledgers := router.Group("/ledgers/:user_id")
	ledgers.POST("", a.GetOrCreateLedger)
	ledgers.GET("", a.GetLedger)
	ledgers.POST("/reset", a.ResetLedger)
	ledgers.GET("/report", a.GetReport)

	ledgers.GET("/transactions", a.ListTransactions)
	ledgers.POST("/transactions", a.RecordTransaction)
	ledgers.PUT("/transactions/:id", a.UpdateTransaction)
	ledgers.DELETE("/transactions/:id", a.DeleteTransaction)

	ledgers.PUT("/history/:index", a.UpdateTransactionAt)
	ledgers.DELETE("/history/:index", a.DeleteTransactionAt)

	return router
}

func NewAPI(t *tally.Tally) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if conf.EnableTelemetry {
		r.Use(otelgin.Middleware("TALLY"))
	}
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Api{tally: t, router: r}
}
