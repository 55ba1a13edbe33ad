package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/config"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/engine"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/market"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/report"
)

var (
	flagConf   = flag.String("conf", "configs/config.yaml", "config path")
	flagSymbol = flag.String("symbol", "", "stock symbol, eg: AAPL")
	flagOut    = flag.String("out", "output/report.html", "html report path")
	flagJSON   = flag.Bool("json", false, "print structured result as JSON to stdout")
)

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.LoadConfig(*flagConf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("配置错误: %v", err)
	}
	if *flagSymbol == "" {
		log.Fatal("请通过 -symbol 指定股票代码")
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动股票雷达...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 初始化行情网关和分析引擎
	gateway, err := market.NewGatewayFromConfig(cfg.MarketData)
	if err != nil {
		logger.Log.Fatalf("行情网关初始化失败: %v", err)
	}
	eng, err := engine.NewEngine(ctx, cfg, gateway)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}

	// 4. 执行分析
	res, err := eng.Analyze(ctx, engine.RunOptions{
		Symbol: *flagSymbol,
		ProgressCallback: func(status string, progress int) {
			logger.Log.Infof("[%3d%%] %s", progress, status)
		},
	})
	if err != nil {
		logger.Log.Fatalf("分析失败: %v", err)
	}

	// 5. 输出
	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			logger.Log.Errorf("输出 JSON 失败: %v", err)
		}
	}
	if err := report.WriteFile(*flagOut, res); err != nil {
		logger.Log.Fatalf("生成 HTML 失败: %v", err)
	}

	logger.Log.Infof("✅ %s 分析报告生成完毕: %s", res.Symbol, *flagOut)
}
