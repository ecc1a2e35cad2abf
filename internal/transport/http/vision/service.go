package vision

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"dronewatch-server-go/internal/app/services"
	"dronewatch-server-go/internal/domain/detection"
	domainimage "dronewatch-server-go/internal/domain/image"
	"dronewatch-server-go/internal/platform/errors"
	"dronewatch-server-go/internal/platform/logging"
	httptransport "dronewatch-server-go/internal/transport/http"
)

const (
	// MaxFileSize 最大文件大小为5MB
	MaxFileSize = 5 * 1024 * 1024
)

// FrameProcessor runs one classify, record and alert round, refusing while
// another round is in flight.
type FrameProcessor interface {
	ClassifyUpload(ctx context.Context, frame detection.Frame) (services.RoundResult, error)
}

// Service Vision服务的HTTP传输层实现: 上传单帧并走完整检测流程
type Service struct {
	logger        *logging.Logger
	imagePipeline *domainimage.Pipeline
	processor     FrameProcessor
	backend       string
}

// NewService 创建新的Vision服务实例
func NewService(
	processor FrameProcessor,
	imagePipeline *domainimage.Pipeline,
	backend string,
	logger *logging.Logger,
) (*Service, error) {
	if processor == nil {
		return nil, errors.New(errors.KindConfig, "vision.new", "frame processor is required")
	}
	if imagePipeline == nil {
		return nil, errors.New(errors.KindConfig, "vision.new", "image pipeline is required")
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}

	return &Service{
		logger:        logger,
		imagePipeline: imagePipeline,
		processor:     processor,
		backend:       backend,
	}, nil
}

// Register 注册Vision相关的HTTP路由
func (s *Service) Register(ctx context.Context, api, secured *gin.RouterGroup) {
	api.GET("/classify", s.handleGet)
	secured.POST("/classify", s.handlePost)

	s.logger.InfoTag("HTTP", "Vision routes registered")
}

// handleGet 处理GET请求（状态检查）
// @Summary Classify endpoint status
// @Tags Vision
// @Produce json
// @Success 200 {object} StatusData
// @Router /classify [get]
func (s *Service) handleGet(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, StatusData{Backend: s.backend, Ready: true}, "")
}

// handlePost 处理POST请求（单帧检测）
// @Summary Classify one uploaded frame
// @Description Runs the frame through validation, classification, the event log and the alert policy
// @Tags Vision
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "image file"
// @Success 200 {object} ClassifyData
// @Failure 400 {object} httptransport.APIResponse
// @Failure 409 {object} httptransport.APIResponse
// @Router /classify [post]
func (s *Service) handlePost(c *gin.Context) {
	frame, err := s.parseMultipartRequest(c)
	if err != nil {
		s.logger.WarnTag("Vision", "classify request rejected: %v", err)
		httptransport.RespondError(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	round, err := s.processor.ClassifyUpload(c.Request.Context(), frame)
	if err != nil {
		s.logger.WarnTag("Vision", "classify request deferred: %v", err)
		httptransport.RespondErr(c, err)
		return
	}
	s.logger.InfoTag("Vision", "classified upload: object_type=%s alerted=%v", round.Result.ObjectType, round.Alerted)

	httptransport.RespondSuccess(c, http.StatusOK, ClassifyData{
		Result:  round.Result,
		Event:   round.Event,
		Alerted: round.Alerted,
		Width:   frame.Width,
		Height:  frame.Height,
		Format:  frame.Format,
	}, "")
}

// parseMultipartRequest 解析multipart表单请求
func (s *Service) parseMultipartRequest(c *gin.Context) (detection.Frame, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileSize+64*1024)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return detection.Frame{}, errors.Wrap(errors.KindTransport, "parse_request", "file field is required", err)
	}
	defer file.Close()

	if header.Size > MaxFileSize {
		return detection.Frame{}, errors.New(errors.KindTransport, "parse_request", "file size exceeds limit")
	}

	declared := domainimage.FormatFromContentType(header.Header.Get("Content-Type"))
	if declared == "" {
		declared = formatFromFilename(header.Filename)
	}

	frame, err := s.imagePipeline.Process(c.Request.Context(), domainimage.Input{
		Reader:         file,
		DeclaredFormat: declared,
		Source:         "upload",
	})
	if err != nil {
		return detection.Frame{}, errors.Wrap(errors.KindMalformed, "parse_request", "image processing failed", err)
	}
	return frame, nil
}

// formatFromFilename 从文件名检测图片格式
func formatFromFilename(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return ""
	}
	return domainimage.NormalizeFormat(ext)
}
