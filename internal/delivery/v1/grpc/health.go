package grpc

import (
	"sync/atomic"

	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SearchServiceName — имя сервиса в протоколе grpc.health.v1. Пустое имя описывает процесс целиком.
const SearchServiceName = "visualsearch.Search"

// HealthService сообщает готовность поиска: NOT_SERVING, пока модель не инициализирована.
type HealthService struct {
	server   *health.Server
	shutdown atomic.Bool
	logger   logger.Logger
}

func NewHealthService(logger logger.Logger) *HealthService {
	h := &HealthService{server: health.NewServer(), logger: logger}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// SetServing переключает статус после инициализации или отказа модели.
func (h *HealthService) SetServing(serving bool) {
	if serving {
		h.set(healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
}

// Shutdown переводит все сервисы в NOT_SERVING; последующие SetServing игнорируются.
func (h *HealthService) Shutdown() {
	h.shutdown.Store(true)
	h.server.Shutdown()
	h.logger.Infof("health status: shutting down")
}

func (h *HealthService) set(status healthpb.HealthCheckResponse_ServingStatus) {
	if h.shutdown.Load() {
		return
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(SearchServiceName, status)
	h.logger.Infof("health status: %s", status)
}
