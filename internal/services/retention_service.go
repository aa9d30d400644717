package services

import (
	"context"
	"sync"
	"time"

	"mailwatch/internal/repository"
	"mailwatch/internal/settings"
	"mailwatch/pkg/logger"
)

// RetentionService ages out old logs and events and truncates stored bodies
// on a daily timer.
type RetentionService struct {
	logRepo   repository.LogRepository
	eventRepo repository.EventRepository
	settings  settings.Provider
	log       *logger.Logger
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewRetentionService(logRepo repository.LogRepository, eventRepo repository.EventRepository, provider settings.Provider, log *logger.Logger) *RetentionService {
	return &RetentionService{
		logRepo:   logRepo,
		eventRepo: eventRepo,
		settings:  provider,
		log:       log,
		interval:  24 * time.Hour,
		stopChan:  make(chan struct{}),
	}
}

func (s *RetentionService) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *RetentionService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *RetentionService) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep runs one cleanup pass. Events go first so no event outlives its log
// by less than a sweep.
func (s *RetentionService) Sweep(ctx context.Context) {
	cfg, err := s.settings.Tracking(ctx)
	if err != nil {
		s.log.Errorf("retention: failed to load settings: %v", err)
		return
	}

	now := time.Now().UTC()

	if cfg.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.RetentionDays)
		if n, err := s.eventRepo.DeleteOlderThan(ctx, cutoff); err != nil {
			s.log.Errorf("retention: event purge failed: %v", err)
		} else if n > 0 {
			s.log.Infof("retention: purged %d events older than %s", n, cutoff.Format(time.DateOnly))
		}
		if n, err := s.logRepo.DeleteOlderThan(ctx, cutoff); err != nil {
			s.log.Errorf("retention: log purge failed: %v", err)
		} else if n > 0 {
			s.log.Infof("retention: purged %d logs older than %s", n, cutoff.Format(time.DateOnly))
		}
	}

	if cfg.CompressAfterDays > 0 {
		cutoff := now.AddDate(0, 0, -cfg.CompressAfterDays)
		if n, err := s.logRepo.CompressBodiesOlderThan(ctx, cutoff); err != nil {
			s.log.Errorf("retention: body compression failed: %v", err)
		} else if n > 0 {
			s.log.Infof("retention: compressed %d log bodies older than %s", n, cutoff.Format(time.DateOnly))
		}
	}
}
