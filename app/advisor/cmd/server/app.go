package main

import (
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/conf"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/data"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/server"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/service"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/usecase"
)

// initApp 按依赖顺序组装 data -> usecase -> service -> server
func initApp(confServer *conf.Server, confData *conf.Data, auth *conf.Auth, radar *conf.Radar, logger log.Logger) (*kratos.App, func(), error) {
	dataData, cleanup, err := data.NewData(confData, logger)
	if err != nil {
		return nil, nil, err
	}
	eng, gateway, radarCleanup, err := server.NewRadarEngine(radar, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	portfolioRepo := data.NewPortfolioRepo(dataData, logger)
	watchlistRepo := data.NewWatchlistRepo(dataData, logger)
	portfolioUseCase := usecase.NewPortfolioUseCase(portfolioRepo, gateway, logger)
	watchlistUseCase := usecase.NewWatchlistUseCase(watchlistRepo, gateway, logger)
	advisorService := service.NewAdvisorService(eng, portfolioUseCase, watchlistUseCase, logger)
	httpServer := server.NewHTTPServer(confServer, auth, advisorService, logger)
	app := newApp(logger, httpServer)
	return app, func() {
		radarCleanup()
		cleanup()
	}, nil
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}
