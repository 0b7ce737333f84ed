package client

import (
	"context"
	"time"

	"docchat/internal/api"
	"docchat/internal/models"

	"github.com/rs/zerolog/log"
)

// Poller watches file status until nothing is pending or indexing.
type Poller struct {
	api      *APIClient
	interval time.Duration
}

func NewPoller(apiClient *APIClient, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{api: apiClient, interval: interval}
}

// Watch reports every change to onUpdate and returns the last known state of
// each id. Lookup failures are logged and retried on the next tick.
func (p *Poller) Watch(ctx context.Context, fileIDs []string, onUpdate func(api.FileStatusResponse)) (map[string]api.FileStatusResponse, error) {
	last := make(map[string]api.FileStatusResponse, len(fileIDs))
	active := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		active[id] = true
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		for id := range active {
			st, err := p.api.Status(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return last, ctx.Err()
				}
				log.Ctx(ctx).Warn().Err(err).Str("file_id", id).Msg("Status poll failed")
				continue
			}
			if st.Status == "" {
				st.Status = models.StatusUnknown
			}
			if prev, seen := last[id]; !seen || prev.Status != st.Status || prev.Message != st.Message {
				last[id] = st
				if onUpdate != nil {
					onUpdate(st)
				}
			}
			if !st.Status.Active() {
				delete(active, id)
			}
		}
		if len(active) == 0 {
			return last, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
