package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/app/service"
	"balance_aggregator/internal/app/session"
	"balance_aggregator/internal/domain/entity"
	"balance_aggregator/internal/infrastructure/configloader"
	"balance_aggregator/internal/infrastructure/httpclient"
	"balance_aggregator/internal/infrastructure/realtime"
	"balance_aggregator/internal/infrastructure/restapi"
	"balance_aggregator/internal/infrastructure/storage"
	"balance_aggregator/internal/pkg/logger"
	"balance_aggregator/internal/pkg/metrics"
	"balance_aggregator/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const defaultConfigPath = "config/config.yml"

func main() {
	// .env не обязателен, переменные окружения могут быть заданы напрямую.
	_ = godotenv.Load()

	configPath := utils.GetEnv("CONFIG_PATH", defaultConfigPath)
	cfg, err := configloader.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Не удалось загрузить конфигурацию %s: %v\n", configPath, err)
		os.Exit(1)
	}

	zapLogger, err := logger.NewZap(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to initialize zapLogger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	logger.InitZapSlog(zapLogger, cfg.Logging.Level)

	logger.Info("Агрегатор балансов запускается...", "config", configPath)
	if cfg.Logging.Level == "debug" {
		logger.Debug("Debug mode enabled")
	}

	appLogger := logger.NewSlogAdapter()
	metrics.MustRegisterMetrics()

	kv, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Не удалось инициализировать хранилище", "драйвер", cfg.Storage.Driver, "ошибка", err)
	}
	if closer, ok := kv.(io.Closer); ok {
		defer closer.Close()
	}
	logger.Info("Хранилище инициализировано", "драйвер", cfg.Storage.Driver)

	tokens := storage.NewTokenStore(kv)
	if token := os.Getenv("GATEWAY_ACCESS_TOKEN"); token != "" {
		if err := tokens.SetTokens(context.Background(), token, os.Getenv("GATEWAY_REFRESH_TOKEN")); err != nil {
			logger.Warn("Не удалось сохранить токен из окружения", "ошибка", err)
		}
	}

	gateway := httpclient.NewGatewayClient(cfg.Gateway, tokens, zapLogger)
	rateStore := service.NewRateStore(gateway, kv, appLogger)
	aggregator := service.NewBalanceAggregator(gateway, rateStore, kv, appLogger)
	logger.Info("Сторы курсов и кошельков инициализированы.")

	var channel port.RealtimeChannel
	if cfg.Realtime.Enabled && cfg.Realtime.URL != "" {
		ch := realtime.Shared(realtime.Options{
			URL:            cfg.Realtime.URL,
			ReconnectDelay: time.Duration(cfg.Realtime.ReconnectDelayMillis) * time.Millisecond,
			MessageLogSize: cfg.Realtime.MessageLogSize,
		}, appLogger)
		ch.SubscribeAll(func(env entity.Envelope) {
			logger.Debug("Получено realtime сообщение", "тип", env.Type, "диалог", env.ConversationID)
		})
		channel = ch
	} else {
		logger.Info("Realtime канал отключен.")
	}

	sess := session.New(session.Deps{
		Credentials:     tokens,
		Profiles:        gateway,
		Rates:           rateStore,
		Balances:        aggregator,
		Channel:         channel,
		Logger:          appLogger,
		WalletsInterval: time.Duration(cfg.Refresh.WalletsIntervalSeconds) * time.Second,
		RatesInterval:   time.Duration(cfg.Refresh.RatesIntervalSeconds) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, time.Duration(cfg.Gateway.RequestTimeoutMillis)*time.Millisecond)
	if err := sess.Init(initCtx); err != nil {
		if errors.Is(err, port.ErrUnauthorized) {
			logger.Warn("Токен отклонен шлюзом, сессия запущена без пользователя")
		} else {
			logger.Warn("Инициализация сессии завершилась с ошибкой", "ошибка", err)
		}
	}
	initCancel()
	sess.StartRefresh(ctx)
	logger.Info("Сессия запущена", "session_id", sess.ID())

	// Настройка и запуск HTTP сервера
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := restapi.SetupRouter(restapi.Handlers{
		Balances: restapi.NewBalanceHandler(aggregator, appLogger),
		Rates:    restapi.NewRateHandler(rateStore, appLogger),
		Realtime: restapi.NewRealtimeHandler(channel),
	}, cfg.CORS.AllowOrigins)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("Запуск HTTP сервера", "адрес", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Не удалось запустить HTTP сервер", "ошибка", err)
		}
	}()

	logger.Info("Приложение работает. HTTP API доступен. Нажмите Ctrl+C для завершения.")

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	logger.Info("Получен сигнал завершения. Завершение работы HTTP сервера...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при Graceful Shutdown HTTP сервера", "ошибка", err)
	} else {
		logger.Info("HTTP сервер успешно остановлен.")
	}

	cancel()
	sess.Dispose()

	logger.Info("Агрегатор балансов остановлен.", "session_id", sess.ID())
}
