package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/TeamMatch/config"
	"github.com/Gopher0727/TeamMatch/internal/api"
	"github.com/Gopher0727/TeamMatch/internal/event"
	"github.com/Gopher0727/TeamMatch/internal/lock"
	"github.com/Gopher0727/TeamMatch/internal/repository"
	"github.com/Gopher0727/TeamMatch/internal/service"
	"github.com/Gopher0727/TeamMatch/internal/storage"
	"github.com/Gopher0727/TeamMatch/middleware/jwt"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/middleware/ratelimit"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLog.Close()

	// 初始化 PostgreSQL
	db, err := storage.InitPostgres(&cfg.Postgres, appLog)
	if err != nil {
		appLog.Fatal("postgres 初始化失败", zap.Error(err))
	}
	defer storage.ClosePostgres(db)
	if err := storage.Migrate(db); err != nil {
		appLog.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 初始化 Redis; 不可用时降级: 锁、限流、登出黑名单都关闭
	var (
		redisClient *redis.Client
		locker      lock.Locker  = lock.NopLocker{}
		denylist    jwt.Denylist = jwt.NopDenylist{}
		limiter     ratelimit.Limiter
	)
	if cfg.Redis.Enabled {
		redisClient, err = storage.InitRedis(context.Background(), &cfg.Redis)
		if err != nil {
			appLog.Warn("redis 不可用, 以降级模式运行", zap.Error(err))
		} else {
			defer redisClient.Close()
			locker = lock.NewRedisLocker(redisClient, cfg.Lock.TTL, cfg.Lock.Wait)
			denylist = jwt.NewRedisDenylist(redisClient)
			limiter = ratelimit.NewFixedWindowLimiter(redisClient, appLog, true)
		}
	}

	// 初始化 Kafka Producer
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := event.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			appLog.Warn("Kafka 生产者初始化失败, 团队事件将不会发布", zap.Error(err))
		} else {
			publisher = kafkaPublisher
		}
	}
	defer publisher.Close()

	// 初始化仓储层
	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	memberRepo := repository.NewUserTeamRepository(db)
	tx := repository.NewTransactor(db)

	// 初始化服务层
	hasher, err := service.NewPasswordHasher(&cfg.Password)
	if err != nil {
		appLog.Fatal("密码哈希初始化失败", zap.Error(err))
	}
	userService := service.NewUserService(userRepo, hasher, locker, appLog)
	teamService := service.NewTeamService(tx, teamRepo, memberRepo, userRepo, locker, publisher, cfg.Team, appLog)

	// 初始化处理器
	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTLHours)
	mw := api.NewMiddlewareManager(tokens, denylist, limiter, &cfg.RateLimit, appLog)

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(api.RouterDeps{
		Middleware: mw,
		Users:      api.NewUserHandler(userService, tokens, denylist, appLog),
		Teams:      api.NewTeamHandler(teamService, appLog),
		Admin:      userService,
		Logger:     appLog,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		appLog.Info("正在启动服务器", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("启动服务器失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("正在关闭服务器")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLog.Error("服务器强制关闭", zap.Error(err))
	}
}
