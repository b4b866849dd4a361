package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/justsurfingit/jobtrackai/internal/logger"
	"github.com/justsurfingit/jobtrackai/internal/models"
)

// MatcherService links an incoming recruiting email to one of the user's
// tracked applications by company name. Matching is purely lexical; the
// email watcher only asks the oracle about emails that matched something.
type MatcherService struct {
	jobs JobStore
	log  *logger.Logger
}

func NewMatcherService(jobs JobStore, baseLog *logger.Logger) *MatcherService {
	return &MatcherService{jobs: jobs, log: baseLog.With("service", "MatcherService")}
}

// MatchEmail returns the most recent tracked application whose company name
// appears in the subject, the sender's display name, or the sender's domain.
// Returns nil when nothing matches.
func (s *MatcherService) MatchEmail(ctx context.Context, userID uuid.UUID, subject, rawSender string) (*models.Job, error) {
	senderName := ""
	senderAddr := strings.ToLower(rawSender)
	if parsed, err := mail.ParseAddress(rawSender); err == nil {
		senderName = strings.ToLower(parsed.Name)
		senderAddr = strings.ToLower(parsed.Address)
	}
	senderDomain := ""
	if at := strings.LastIndex(senderAddr, "@"); at >= 0 {
		senderDomain = senderAddr[at+1:]
	}
	subjectLower := strings.ToLower(subject)

	jobs, err := s.jobs.List(ctx, userID, nil, 0)
	if err != nil {
		return nil, err
	}

	// List is newest-first, so the first hit is the freshest application.
	for i := range jobs {
		company := strings.ToLower(jobs[i].CompanyName)
		// Very short names match almost anything.
		if len(company) < 3 {
			continue
		}
		if strings.Contains(subjectLower, company) ||
			(senderName != "" && strings.Contains(senderName, company)) ||
			(senderDomain != "" && strings.Contains(senderDomain, company)) {
			return &jobs[i], nil
		}
	}
	return nil, nil
}
