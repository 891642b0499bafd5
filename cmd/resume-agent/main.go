package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-agent-go/internal/agent"
	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/config"
	appLogger "resume-agent-go/internal/logger"
	"resume-agent-go/internal/outbox"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	// 配置错误在启动时就是致命的，不允许带病运行
	if err := cfg.Validate(); err != nil {
		appLogger.Fatal().Err(err).Msg("配置校验失败")
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 纯模式抽取需要显式配置开启：所有LLM调用直接失败并走降级路径
	var chatModel model.ToolCallingChatModel
	if cfg.Extractor.PatternOnly {
		glog.Warn("已开启纯模式抽取，所有LLM增强能力关闭")
		chatModel = agent.NewMockChatClient("", config.ErrInvalidConfig)
	} else {
		chatModel, err = agent.NewQwenChatModel(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
		if err != nil {
			glog.Fatalf("初始化通义千问客户端失败: %v", err)
		}
	}

	pipeline, err := processor.BuildPipeline(cfg, chatModel, storageManager)
	if err != nil {
		glog.Fatalf("组装抽取流水线失败: %v", err)
	}
	glog.Info("抽取流水线初始化成功")

	// 发件箱中继：补发直连发布失败的结果消息
	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ)
		messageRelay.Start()
	}

	extractHandler := handler.NewExtractHandler(cfg, pipeline)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	router.RegisterRoutes(h, extractHandler)
	glog.Info("HTTP路由注册成功")

	go func() {
		glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger(cfg *config.Config) {
	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	// Hertz的hlog走同一个zerolog实例
	glog.SetLogger(hertzadapter.From(appLogger.Logger))
}
