// Package service runs the background lifecycle around the catalog store:
// a periodic copy of the catalog to object storage, so a lost disk does not
// lose a curated catalog.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"critterlens/internal"
	"critterlens/internal/catalog"
	"critterlens/internal/logging"
	"critterlens/internal/s3"
)

type Service struct {
	cfg   internal.Config
	store *catalog.Store
	s3c   s3.Client
	log   *logging.Logger
	cron  *cron.Cron
}

func New(cfg internal.Config, store *catalog.Store, s3c s3.Client, log *logging.Logger) *Service {
	return &Service{
		cfg:   cfg,
		store: store,
		s3c:   s3c,
		log:   log,
		cron:  cron.New(),
	}
}

// Run starts the backup schedule and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.s3c != nil {
		s.cron.Schedule(cron.Every(s.cfg.BackupEvery), cron.FuncJob(func() {
			s.backup(ctx)
		}))
		s.log.Infof("service: catalog backup every %s to s3 key %s", s.cfg.BackupEvery, s.cfg.CatalogKey)
	}
	s.cron.Start()

	<-ctx.Done()

	ctxStop := s.cron.Stop()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("cron stop timeout")
	}
}

func (s *Service) backup(ctx context.Context) {
	snap := s.store.Snapshot()
	if err := s.s3c.WriteJSON(ctx, s.cfg.CatalogKey, &snap); err != nil {
		s.log.Errorf("service: catalog backup failed: %v", err)
		return
	}
	if !s.cfg.Silent {
		s.log.Infof("service: catalog backed up (%d entries)", len(snap.Items))
	}
}
