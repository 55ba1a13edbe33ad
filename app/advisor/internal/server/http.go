package server

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	authjwt "github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport/http"
	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/conf"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/service"
)

// 需要登录的接口前缀，/api/analyze 对外开放
var authPrefixes = []string{"/api/portfolio", "/api/watchlist"}

func NewHTTPServer(c *conf.Server, auth *conf.Auth, s *service.AdvisorService, logger log.Logger) *http.Server {
	jwtKey := "default-secret"
	if auth != nil && auth.JwtKey != "" {
		jwtKey = auth.JwtKey
	}

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			selector.Server(
				authjwt.Server(func(*jwtv5.Token) (interface{}, error) {
					return []byte(jwtKey), nil
				}, authjwt.WithSigningMethod(jwtv5.SigningMethodHS256)),
			).Prefix(authPrefixes...).Build(),
		),
		http.ErrorEncoder(errorEncoder),
		// 分析本身有超时控制，这里默认不限制请求时长
		http.Timeout(0),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				opts = append(opts, http.Timeout(d))
			} else {
				log.NewHelper(logger).Warnf("invalid server.http.timeout %q: %v", c.Http.Timeout, err)
			}
		}
	}

	srv := http.NewServer(opts...)
	r := srv.Route("/")
	r.GET("/api/analyze/{symbol}", s.Analyze)
	r.GET("/api/portfolio", s.GetPortfolio)
	r.POST("/api/portfolio/add", s.AddPosition)
	r.POST("/api/portfolio/remove", s.RemovePosition)
	r.GET("/api/watchlist", s.GetWatchlist)
	r.POST("/api/watchlist/add", s.AddWatch)
	r.POST("/api/watchlist/remove", s.RemoveWatch)
	return srv
}

// errorEncoder 所有错误统一输出 {"error": message}，状态码取 kratos 错误码
func errorEncoder(w nethttp.ResponseWriter, _ *nethttp.Request, err error) {
	se := errors.FromError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(int(se.Code))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": se.Message})
}
