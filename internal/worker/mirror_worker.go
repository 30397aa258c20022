package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets"
)

var ErrMissingSnapshot = errors.New("event carries no transaction snapshot")

// MirrorWorker applies transaction events to a spreadsheet mirror.
type MirrorWorker struct {
	mirror  sheets.Mirror
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewMirrorWorker(mirror sheets.Mirror, m *metrics.Metrics, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &MirrorWorker{
		mirror:  mirror,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent is an amqp.Handler. Returning an error makes the broker redeliver.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldEventKind, ev.Kind,
		log.FieldTransactionID, ev.TransactionID,
		log.FieldUserID, ev.UserID)

	err := w.apply(ctx, ev)
	w.metrics.RecordEventMirrored(string(ev.Kind), err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror transaction event",
			log.FieldEventKind, ev.Kind,
			log.FieldTransactionID, ev.TransactionID,
			log.FieldError, err)
		return fmt.Errorf("mirror %s event: %w", ev.Kind, err)
	}
	return nil
}

func (w *MirrorWorker) apply(ctx context.Context, ev *amqp.TransactionEvent) error {
	switch ev.Kind {
	case amqp.EventCreated:
		if ev.Transaction == nil {
			return ErrMissingSnapshot
		}
		return w.mirror.AppendTransaction(ctx, *ev.Transaction)

	case amqp.EventUpdated:
		if ev.Transaction == nil {
			return ErrMissingSnapshot
		}
		return w.mirror.UpdateTransaction(ctx, *ev.Transaction)

	case amqp.EventDeleted:
		return w.mirror.DeleteTransaction(ctx, ev.TransactionID)

	case amqp.EventPurged:
		n, err := w.mirror.DeleteUser(ctx, ev.UserID)
		if err != nil {
			return err
		}
		w.logger.InfoContext(ctx, "Mirror rows purged", log.FieldUserID, ev.UserID, log.FieldCount, n)
		return nil
	}
	return fmt.Errorf("unknown event kind %q", ev.Kind)
}
