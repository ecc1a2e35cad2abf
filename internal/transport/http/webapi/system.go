package webapi

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"dronewatch-server-go/internal/platform/logging"
	httptransport "dronewatch-server-go/internal/transport/http"
)

const bytesPerMB = 1024 * 1024

// SystemStats is one snapshot of the host the service runs on.
type SystemStats struct {
	CPULoad      float64   `json:"cpuLoad"`
	RAMUsedMB    float64   `json:"ramUsedMb"`
	RAMTotalMB   float64   `json:"ramTotalMb"`
	ProcessRSSMB float64   `json:"processRssMb"`
	DiskUsedGB   float64   `json:"diskUsedGb"`
	DiskTotalGB  float64   `json:"diskTotalGb"`
	Goroutines   int       `json:"goroutines"`
	CollectedAt  time.Time `json:"collectedAt"`
}

// CollectSystemStats samples CPU, memory and disk. A failing probe leaves its
// fields zero; only the first failure is returned.
func CollectSystemStats(ctx context.Context, logger *logging.Logger) (SystemStats, error) {
	stats := SystemStats{
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now(),
	}
	var firstErr error
	note := func(probe string, err error) {
		logger.WarnTag("SYSTEM", "%s probe failed: %v", probe, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	// zero interval compares against the previous call
	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		note("cpu", err)
	} else if len(percentages) > 0 {
		stats.CPULoad = percentages[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		note("memory", err)
	} else {
		// Total-Available leaves out the page cache
		stats.RAMUsedMB = float64(vm.Total-vm.Available) / bytesPerMB
		stats.RAMTotalMB = float64(vm.Total) / bytesPerMB
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err != nil {
		note("process", err)
	} else if info, err := proc.MemoryInfoWithContext(ctx); err != nil {
		note("process", err)
	} else {
		stats.ProcessRSSMB = float64(info.RSS) / bytesPerMB
	}

	if usage, err := disk.UsageWithContext(ctx, "/"); err != nil {
		note("disk", err)
	} else {
		stats.DiskUsedGB = float64(usage.Used) / bytesPerMB / 1024
		stats.DiskTotalGB = float64(usage.Total) / bytesPerMB / 1024
	}

	return stats, firstErr
}

// handleSystemGet 获取主机资源
// @Summary Host resource usage
// @Tags System
// @Produce json
// @Success 200 {object} SystemStats
// @Router /system [get]
func (s *Service) handleSystemGet(c *gin.Context) {
	stats, err := CollectSystemStats(c.Request.Context(), s.logger)
	message := ""
	if err != nil {
		message = "partial: " + err.Error()
	}
	httptransport.RespondSuccess(c, http.StatusOK, stats, message)
}
