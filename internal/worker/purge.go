package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/metrics"
)

const defaultPurgeInterval = 5 * time.Minute

// ExpiredEntryPurger 清理过期键值记录
type ExpiredEntryPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SessionPurger 清理过旧的网关会话
type SessionPurger interface {
	DeleteCreatedBefore(cutoff time.Time) (int64, error)
}

// PurgeService 周期清理过期数据
type PurgeService struct {
	name      string
	entries   ExpiredEntryPurger
	sessions  SessionPurger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewPurgeService 创建清理服务，entries 与 sessions 均可为空
func NewPurgeService(entries ExpiredEntryPurger, sessions SessionPurger, retention, interval time.Duration) *PurgeService {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	return &PurgeService{
		name:      "purge",
		entries:   entries,
		sessions:  sessions,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Name 服务名称
func (s *PurgeService) Name() string {
	if s == nil || s.name == "" {
		return "purge"
	}
	return s.name
}

// Start 启动清理循环，直到 ctx 结束
func (s *PurgeService) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("purge service not initialized")
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop 停止服务
func (s *PurgeService) Stop(ctx context.Context) error {
	return nil
}

// RunOnce 执行一轮清理
func (s *PurgeService) RunOnce(ctx context.Context) {
	if s == nil {
		return
	}
	if s.entries != nil {
		removed, err := s.entries.PurgeExpired(ctx)
		if err != nil {
			logger.Warnw("worker_purge_kv_entries_failed", "error", err)
		} else if removed > 0 {
			metrics.PurgedRecordsTotal.WithLabelValues("kv_entries").Add(float64(removed))
			logger.Debugw("worker_purge_kv_entries", "removed", removed)
		}
	}
	if s.sessions != nil && s.retention > 0 {
		cutoff := s.now().Add(-s.retention)
		removed, err := s.sessions.DeleteCreatedBefore(cutoff)
		if err != nil {
			logger.Warnw("worker_purge_verification_sessions_failed", "cutoff", cutoff, "error", err)
		} else if removed > 0 {
			metrics.PurgedRecordsTotal.WithLabelValues("verification_sessions").Add(float64(removed))
			logger.Debugw("worker_purge_verification_sessions", "removed", removed, "cutoff", cutoff)
		}
	}
}
