package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/plugin"
)

// QueueDepther reports pending rate-limited requests.
type QueueDepther interface {
	QueueDepth() int
}

// StatusInfo is the static part of the status document.
type StatusInfo struct {
	Version string
	Started time.Time
	Bot     *messaging.BotContext
	Plugins plugin.LoadReport
}

// PluginStatus summarizes the loader passes.
type PluginStatus struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version    string       `json:"version"`
	Bot        string       `json:"bot,omitempty"`
	Uptime     string       `json:"uptime"`
	Plugins    PluginStatus `json:"plugins"`
	QueueDepth int          `json:"queue_depth"`
	RSSBytes   uint64       `json:"rss_bytes,omitempty"`
	Threads    int32        `json:"threads,omitempty"`
}

// StatusHandler serves GET /api/v1/status.
type StatusHandler struct {
	info  StatusInfo
	queue QueueDepther
	proc  *process.Process
}

// NewStatusHandler creates the handler. queue may be nil.
func NewStatusHandler(info StatusInfo, queue QueueDepther) *StatusHandler {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &StatusHandler{info: info, queue: queue, proc: proc}
}

// Status handles GET /api/v1/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version: h.info.Version,
		Uptime:  time.Since(h.info.Started).Round(time.Second).String(),
		Plugins: PluginStatus{
			Total:     h.info.Plugins.Total,
			Succeeded: h.info.Plugins.Succeeded,
			Failed:    h.info.Plugins.Failed,
		},
	}
	if resp.Plugins.Failed == nil {
		resp.Plugins.Failed = []string{}
	}
	if h.info.Bot != nil {
		resp.Bot = "@" + h.info.Bot.Username
	}
	if h.queue != nil {
		resp.QueueDepth = h.queue.QueueDepth()
	}
	if h.proc != nil {
		if mem, err := h.proc.MemoryInfoWithContext(r.Context()); err == nil {
			resp.RSSBytes = mem.RSS
		}
		if n, err := h.proc.NumThreadsWithContext(r.Context()); err == nil {
			resp.Threads = n
		}
	}

	writeJSON(w, http.StatusOK, okResponse(resp))
}
