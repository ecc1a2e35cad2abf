package webapi

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dronewatch-server-go/internal/app/services"
	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/domain/events"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
	httptransport "dronewatch-server-go/internal/transport/http"
)

// Monitor is the control surface of the monitoring service.
type Monitor interface {
	Start(ctx context.Context, sensitivity int) error
	Stop()
	SetSensitivity(s int) error
	Status(ctx context.Context) services.MonitorStatus
}

// Explainer answers why an event was flagged.
type Explainer interface {
	Explain(ctx context.Context, event detection.Event, hints detection.ExplainRequest) string
}

// DebugLog is the AI debug ring.
type DebugLog interface {
	Entries() []detection.DebugEntry
	Clear()
}

// Options wires the WebAPI service.
type Options struct {
	Monitor   Monitor
	Store     events.Store
	Explainer Explainer
	Debug     DebugLog
	Logger    *logging.Logger
}

// Service WebAPI服务的HTTP传输层实现: 监控控制、事件日志、AI调试日志
type Service struct {
	monitor   Monitor
	store     events.Store
	explainer Explainer
	debug     DebugLog
	logger    *logging.Logger
}

// NewService 创建新的WebAPI服务实例
func NewService(opts Options) (*Service, error) {
	if opts.Monitor == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "monitor is required")
	}
	if opts.Store == nil {
		return nil, errors.New(errors.KindConfig, "webapi.new", "event store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	return &Service{
		monitor:   opts.Monitor,
		store:     opts.Store,
		explainer: opts.Explainer,
		debug:     opts.Debug,
		logger:    opts.Logger,
	}, nil
}

// Register 注册WebAPI相关的HTTP路由. Control routes go on secured.
func (s *Service) Register(ctx context.Context, api, secured *gin.RouterGroup) {
	api.GET("/status", s.handleStatus)
	api.GET("/events", s.handleEventsList)
	api.GET("/events/:id", s.handleEventGet)
	api.GET("/debug", s.handleDebugGet)
	api.GET("/system", s.handleSystemGet)

	secured.POST("/monitor/start", s.handleStart)
	secured.POST("/monitor/stop", s.handleStop)
	secured.PUT("/monitor/sensitivity", s.handleSensitivity)
	secured.POST("/events/:id/explain", s.handleExplain)
	secured.DELETE("/debug", s.handleDebugClear)

	s.logger.InfoTag("HTTP", "WebAPI routes registered")
}

// SensitivityRequest carries a sensitivity between 1 and 10.
type SensitivityRequest struct {
	Sensitivity int `json:"sensitivity"`
}

// EventList is the event log, newest first.
type EventList struct {
	Events []detection.Event `json:"events"`
	Count  int               `json:"count"`
}

// ExplainResponse carries the backend's explanation for one event.
type ExplainResponse struct {
	EventID     string `json:"eventId"`
	Explanation string `json:"explanation"`
}

// handleStatus 获取监控状态
// @Summary Monitoring status
// @Description Sampler state, sensitivity, interval and event count
// @Tags Monitor
// @Produce json
// @Success 200 {object} services.MonitorStatus
// @Router /status [get]
func (s *Service) handleStatus(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.monitor.Status(c.Request.Context()), "")
}

// handleStart 开始监控
// @Summary Start monitoring
// @Description Acquires the camera and starts sampling. A missing or zero sensitivity keeps the current one.
// @Tags Monitor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SensitivityRequest false "sensitivity 1..10"
// @Success 200 {object} services.MonitorStatus
// @Failure 400 {object} httptransport.APIResponse
// @Failure 409 {object} httptransport.APIResponse
// @Failure 503 {object} httptransport.APIResponse
// @Router /monitor/start [post]
func (s *Service) handleStart(c *gin.Context) {
	var req SensitivityRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "invalid JSON body", nil)
			return
		}
	}

	if err := s.monitor.Start(c.Request.Context(), req.Sensitivity); err != nil {
		httptransport.RespondErr(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.monitor.Status(c.Request.Context()), "monitoring started")
}

// handleStop 停止监控
// @Summary Stop monitoring
// @Tags Monitor
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.MonitorStatus
// @Router /monitor/stop [post]
func (s *Service) handleStop(c *gin.Context) {
	s.monitor.Stop()
	httptransport.RespondSuccess(c, http.StatusOK, s.monitor.Status(c.Request.Context()), "monitoring stopped")
}

// handleSensitivity 调整灵敏度
// @Summary Set sensitivity
// @Description Rejected with 409 while monitoring is active
// @Tags Monitor
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SensitivityRequest true "sensitivity 1..10"
// @Success 200 {object} services.MonitorStatus
// @Failure 400 {object} httptransport.APIResponse
// @Failure 409 {object} httptransport.APIResponse
// @Router /monitor/sensitivity [put]
func (s *Service) handleSensitivity(c *gin.Context) {
	var req SensitivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	if err := s.monitor.SetSensitivity(req.Sensitivity); err != nil {
		httptransport.RespondErr(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.monitor.Status(c.Request.Context()), "sensitivity updated")
}

// handleEventsList 获取事件日志
// @Summary List detection events
// @Description Newest first. frames=false omits the frame data URIs.
// @Tags Events
// @Produce json
// @Param frames query bool false "include frame data URIs" default(true)
// @Success 200 {object} EventList
// @Router /events [get]
func (s *Service) handleEventsList(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.ErrorTag("HTTP", "list events failed: %v", err)
		httptransport.RespondErr(c, err)
		return
	}
	if c.Query("frames") == "false" {
		for i := range list {
			list[i].FrameDataURI = ""
		}
	}
	httptransport.RespondSuccess(c, http.StatusOK, EventList{Events: list, Count: len(list)}, "")
}

// handleEventGet 获取单个事件
// @Summary Get one detection event
// @Tags Events
// @Produce json
// @Param id path string true "event id"
// @Success 200 {object} detection.Event
// @Failure 404 {object} httptransport.APIResponse
// @Router /events/{id} [get]
func (s *Service) handleEventGet(c *gin.Context) {
	event, ok := s.lookupEvent(c)
	if !ok {
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, event, "")
}

// handleExplain 解释事件
// @Summary Explain why an event was flagged
// @Description Asks the vision backend about the event frame. The answer is cached per event.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "event id"
// @Param body body detection.ExplainRequest false "optional hints"
// @Success 200 {object} ExplainResponse
// @Failure 404 {object} httptransport.APIResponse
// @Router /events/{id}/explain [post]
func (s *Service) handleExplain(c *gin.Context) {
	if s.explainer == nil {
		httptransport.RespondError(c, http.StatusNotImplemented, "explanations are not configured", nil)
		return
	}
	var hints detection.ExplainRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&hints); err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "invalid JSON body", nil)
			return
		}
	}

	event, ok := s.lookupEvent(c)
	if !ok {
		return
	}
	explanation := s.explainer.Explain(c.Request.Context(), event, hints)
	httptransport.RespondSuccess(c, http.StatusOK, ExplainResponse{EventID: event.ID, Explanation: explanation}, "")
}

// handleDebugGet 获取AI调试日志
// @Summary AI debug log
// @Description Raw backend replies and errors, newest first
// @Tags Debug
// @Produce json
// @Success 200 {array} detection.DebugEntry
// @Router /debug [get]
func (s *Service) handleDebugGet(c *gin.Context) {
	if s.debug == nil {
		httptransport.RespondSuccess(c, http.StatusOK, []detection.DebugEntry{}, "")
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, s.debug.Entries(), "")
}

// handleDebugClear 清空AI调试日志
// @Summary Clear the AI debug log
// @Tags Debug
// @Security BearerAuth
// @Success 200 {object} httptransport.APIResponse
// @Router /debug [delete]
func (s *Service) handleDebugClear(c *gin.Context) {
	if s.debug != nil {
		s.debug.Clear()
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "debug log cleared")
}

func (s *Service) lookupEvent(c *gin.Context) (detection.Event, bool) {
	event, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, events.ErrNotFound) {
		httptransport.RespondError(c, http.StatusNotFound, "event not found", gin.H{"id": c.Param("id")})
		return detection.Event{}, false
	}
	if err != nil {
		s.logger.ErrorTag("HTTP", "get event failed: id=%s err=%v", c.Param("id"), err)
		httptransport.RespondErr(c, err)
		return detection.Event{}, false
	}
	return event, true
}
