package app

import (
	"errors"
	"time"

	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/provider"
	"github.com/panierscan/authcore/internal/router"
	"github.com/panierscan/authcore/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		httpService := NewHTTPService(addr, engine)
		services = append(services, httpService)
	}

	// 初始化 Worker 服务
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else if mode == ModeWorker {
			return nil, errors.New("worker mode requires queue.enabled")
		} else {
			logger.Infow("app_worker_skipped", "reason", "queue_disabled")
		}

		retention := time.Duration(cfg.OTP.SessionRetentionHours) * time.Hour
		interval := time.Duration(cfg.Worker.PurgeIntervalSeconds) * time.Second
		services = append(services, worker.NewPurgeService(container.GormKVStore, container.VerificationSessionRepo, retention, interval))
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	// 资源服务排在首位，Runner 逆序停止时最后关闭连接
	services = append([]Service{newResourceService(container.Close)}, services...)
	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
