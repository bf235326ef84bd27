package main

import (
	"context"
	"flag"
	"strings"

	"github.com/panierscan/authcore/internal/authz"
	"github.com/panierscan/authcore/internal/cache"
	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/models"
	"github.com/panierscan/authcore/internal/provider"
)

func main() {
	var name, key, roles string
	flag.StringVar(&name, "name", "", "额外创建的操作员名称")
	flag.StringVar(&key, "key", "", "额外创建的操作员 API Key（至少 16 位）")
	flag.StringVar(&roles, "roles", "readonly_auditor", "逗号分隔的角色列表")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	seeds := make([]models.OperatorSeed, 0, len(cfg.Operators)+1)
	for _, item := range cfg.Operators {
		seeds = append(seeds, models.OperatorSeed{Name: item.Name, Key: item.Key, Roles: item.Roles})
	}
	if strings.TrimSpace(name) != "" {
		seeds = append(seeds, models.OperatorSeed{Name: name, Key: key, Roles: splitRoles(roles)})
	}

	operators, err := models.InitOperators(models.DB, seeds)
	if err != nil {
		stdLog.Fatalf("Failed to seed operators: %v", err)
	}
	for _, operator := range operators {
		if err := authzService.SetOperatorRoles(operator.ID, []string(operator.Roles)); err != nil {
			stdLog.Fatalf("Failed to assign roles to %s: %v", operator.Name, err)
		}
		stdLog.Printf("operator %s (id=%d) roles=%v", operator.Name, operator.ID, []string(operator.Roles))
	}
	// 运行中的服务可能缓存了旧角色
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		stdLog.Printf("Skip operator snapshot invalidation: %v", err)
	} else {
		provider.InvalidateOperatorSnapshots(context.Background(), operators)
		_ = cache.Close()
	}
	stdLog.Printf("Seed completed: %d operators", len(operators))
}

func splitRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if role := strings.TrimSpace(part); role != "" {
			result = append(result, role)
		}
	}
	return result
}
