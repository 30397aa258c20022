package services

import (
	"context"
	"fmt"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"
)

// ContactService stores contact form submissions. Authentication is optional;
// when a principal is present the message is linked to it so account purges
// can remove it.
type ContactService struct {
	store   storage.ContactStore
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewContactService(store storage.ContactStore, m *metrics.Metrics, logger *log.Logger) *ContactService {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &ContactService{
		store:   store,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentContact),
	}
}

// Submit validates in and stores it. p may be the zero Principal.
func (s *ContactService) Submit(ctx context.Context, p auth.Principal, in core.ContactInput) (core.ContactMessage, error) {
	msg, err := in.ToContactMessage(p.ID())
	if err != nil {
		if ve, ok := core.AsValidationError(err); ok {
			for _, f := range ve.Fields {
				s.metrics.RecordValidationError(f.Field, f.Tag)
			}
		}
		return core.ContactMessage{}, err
	}

	saved, err := s.store.CreateContactMessage(ctx, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store contact message",
			log.FieldUserID, msg.UserID,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err)
		return core.ContactMessage{}, fmt.Errorf("store contact message: %w", err)
	}

	s.metrics.RecordContactMessage()
	s.logger.InfoContext(ctx, "Contact message received",
		"message_id", saved.ID,
		"authenticated", saved.UserID != "")
	return saved, nil
}
