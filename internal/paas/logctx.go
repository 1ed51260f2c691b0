package paas

import (
	"context"
	"time"
)

const eventTimeout = 2 * time.Second

// LogBestEffortCtx forwards one pipeline event through the client carried by ctx.
// The stage tagged on ctx becomes the session key so a cycle's events group together.
// Delivery failures are dropped.
func LogBestEffortCtx(ctx context.Context, action, level string, details map[string]any) {
	p := ClientFromContext(ctx)
	if p == nil {
		return
	}
	stage := StageFromContext(ctx)
	meta := map[string]any{}
	if stage != "" {
		meta["stage"] = stage
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()
	_ = p.CreateLog(sendCtx, CreateLogRequest{
		Agent:      p.agentName(),
		Action:     action,
		Level:      level,
		Details:    details,
		SessionKey: stage,
		Metadata:   meta,
	})
}
