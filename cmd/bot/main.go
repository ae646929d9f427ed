package main

import (
	"btc-alerts/internal/alertbot"
	"btc-alerts/internal/config"
	"btc-alerts/internal/exec"
	"btc-alerts/internal/logger"
	"btc-alerts/internal/market"
	"btc-alerts/internal/models"
	"btc-alerts/internal/notifier"
	"btc-alerts/internal/persistence"
	"btc-alerts/internal/reporter"
	"btc-alerts/internal/ticker"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "alert", "running mode: alert, exec or report")
	flag.Parse()

	// --- 初始化日志 (提前) ---
	// 在加载 .env 和配置文件之前先用默认配置初始化一个 logger
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	// Telegram 凭证只从环境变量读取，不写入 JSON 配置
	tg := notifier.NewTelegram(
		os.Getenv("TELEGRAM_BOT_TOKEN"),
		os.Getenv("TELEGRAM_CHAT_ID"),
		os.Getenv("TELEGRAM_SIGNALS_CHAT_ID"),
	)
	if !tg.Enabled() {
		logger.S().Warn("Telegram 未配置 (TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID)，消息只写入日志。")
	}

	// --- 根据模式执行 ---
	switch *mode {
	case "alert":
		runAlertMode(cfg, tg)
	case "exec":
		runExecMode(cfg, tg)
	case "report":
		if err := reporter.Run(cfg, tg, time.Now()); err != nil {
			logger.S().Fatalf("生成日报失败: %v", err)
		}
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'alert'、'exec' 或 'report'。", *mode)
	}
}

// runAlertMode 运行行情判读与信号循环
func runAlertMode(cfg *models.Config, tg *notifier.Telegram) {
	logger.S().Info("--- 启动信号模式 ---")

	health := market.NewHealthTracker(
		[]string{market.SourceBinanceFapi, market.SourceBinanceSpot, market.SourceBybit},
		tg.SendRegime,
	)
	mkt := market.NewClient(health)

	store, err := persistence.NewAlertStateStore(cfg.AlertStatePath)
	if err != nil {
		logger.S().Fatalf("初始化状态文件失败: %v", err)
	}

	bot, err := alertbot.New(cfg, mkt, tg, store)
	if err != nil {
		logger.S().Fatalf("初始化信号循环失败: %v", err)
	}

	ctx := signalContext()
	if err := bot.Run(ctx); err != nil && err != context.Canceled {
		logger.S().Errorf("信号循环退出: %v", err)
	}
	logger.S().Info("信号循环已停止。")
}

// runExecMode 运行纸面交易执行循环
func runExecMode(cfg *models.Config, tg *notifier.Telegram) {
	logger.S().Info("--- 启动纸面执行模式 ---")

	health := market.NewHealthTracker(
		[]string{market.SourceBinanceFapi},
		tg.SendRegime,
	)
	mkt := market.NewClient(health)

	repo, err := persistence.NewBadgerRepository(cfg.PaperDBPath)
	if err != nil {
		logger.S().Fatalf("打开状态数据库失败: %v", err)
	}
	defer repo.Close()

	var prices ticker.PriceSource
	if cfg.UseWSTicker {
		symbols := append([]string{cfg.Symbol}, cfg.SetupSymbols...)
		ws := ticker.NewWSSource(symbols)
		defer ws.Close()
		prices = ws
	} else {
		prices = ticker.NewRESTSource(mkt)
	}

	executor, err := exec.New(cfg, repo, prices)
	if err != nil {
		logger.S().Fatalf("初始化执行循环失败: %v", err)
	}

	ctx := signalContext()
	if err := executor.Run(ctx); err != nil && err != context.Canceled {
		logger.S().Errorf("执行循环退出: %v", err)
	}
	logger.S().Info("执行循环已停止，状态已保存。")
}

// signalContext 返回一个在收到 SIGINT/SIGTERM 时取消的 context
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.S().Info("收到退出信号，正在停止...")
		cancel()
	}()
	return ctx
}
