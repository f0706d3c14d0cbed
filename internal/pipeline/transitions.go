package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"duet/internal/logging"
	"duet/internal/notifications"
	"duet/internal/project"
	"duet/internal/services"
)

// load fetches a project or reports ErrNotFound.
func (m *Manager) load(ctx context.Context, id int64) (*project.Project, error) {
	return m.Get(ctx, id)
}

func (m *Manager) started(logger *slog.Logger, from, to project.Status) {
	logger.Info("transition started",
		logging.String(logging.FieldEventType, "transition_start"),
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
}

func (m *Manager) completed(logger *slog.Logger, p *project.Project, from project.Status) Outcome {
	logger.Info("transition complete",
		logging.String(logging.FieldEventType, "transition_complete"),
		logging.String("from", string(from)),
		logging.String("to", string(p.Status)),
	)
	return Outcome{Project: p, Applied: true}
}

func (m *Manager) rejected(logger *slog.Logger, p *project.Project, reason string) Outcome {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "transition_rejected"),
		logging.String("reason", reason),
	}
	if p != nil {
		attrs = append(attrs, logging.String("status", string(p.Status)))
	}
	logger.Info("transition rejected", logging.Args(attrs...)...)
	return Outcome{Project: p, Reason: reason}
}

// fail records err on p as FAILED. The write ignores cancellation of ctx so a
// cancelled render still lands in FAILED.
func (m *Manager) fail(ctx context.Context, logger *slog.Logger, p *project.Project, from project.Status, err error) (Outcome, error) {
	action := recoveryFor(p, err)
	p.SetFailed(services.ErrorKind(err), services.FormatFailure(err, action))

	logging.ErrorWithContext(logger, "transition failed", "transition_failure",
		logging.String("from", string(from)),
		logging.String("to", string(project.StatusFailed)),
		logging.String(logging.FieldErrorKind, p.ErrorKind),
		logging.String(logging.FieldErrorHint, "run "+action),
		logging.Error(err),
	)
	if uerr := m.store.Update(context.WithoutCancel(ctx), p); uerr != nil {
		return Outcome{}, fmt.Errorf("persist failure: %w", uerr)
	}
	stage, _ := services.StageFromContext(ctx)
	m.notify(ctx, logger, notifications.EventProjectFailed, notifications.Payload{
		"projectID": p.ID,
		"topic":     p.Topic,
		"stage":     stage,
		"kind":      p.ErrorKind,
		"error":     p.ErrorMessage,
	})
	return Outcome{Project: p, Applied: true, Reason: p.ErrorMessage}, nil
}

// notify publishes event without failing the transition that raised it.
func (m *Manager) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(logger, "notification not delivered", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// recoveryFor picks retry-render only when the failure happened after a
// voiceover was attached and the failure is not a script or audio problem.
func recoveryFor(p *project.Project, err error) string {
	hasAudio := p.VoiceoverPath != "" && len(p.Scenes) > 0 && len(p.Scenes) == p.LineCount()
	if hasAudio && services.RecoveryAction(err) == services.RecoverRetryRender {
		return services.RecoverRetryRender
	}
	return services.RecoverRegenerate
}
