package app

import "context"

// resourceService 持有共享连接（Redis、队列客户端），作为第一个服务启动、最后一个停止
type resourceService struct {
	close func() error
}

func newResourceService(closeFn func() error) *resourceService {
	return &resourceService{close: closeFn}
}

// Name 服务名称
func (s *resourceService) Name() string {
	return "resources"
}

// Start 仅等待退出信号
func (s *resourceService) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Stop 在其余服务停止后关闭连接
func (s *resourceService) Stop(context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
