// Package backup makes scheduled snapshots of the item store and keeps only the newest ones
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"
)

const filePrefix = "shop-"
const fileSuffix = ".db"

// Snapshotter writes a consistent copy of the store into a file
type Snapshotter interface {
	Backup(ctx context.Context, dst string) error
}

// Params configures Service
type Params struct {
	Schedule string // cron expression, like "0 3 * * *" or "@daily"
	Location string // directory for snapshots
	Keep     int    // number of snapshots to retain, 0 keeps all
}

// Service runs snapshots on schedule
type Service struct {
	Params
	store Snapshotter
	cron  *cron.Cron
	now   func() time.Time
}

// New makes backup service, it validates the schedule but doesn't start anything
func New(store Snapshotter, p Params) (*Service, error) {
	sched, err := cron.ParseStandard(p.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", p.Schedule, err)
	}
	if p.Location == "" {
		return nil, fmt.Errorf("backup location is required")
	}
	if err := os.MkdirAll(p.Location, 0o700); err != nil {
		return nil, fmt.Errorf("can't make backup location %s: %w", p.Location, err)
	}

	s := &Service{Params: p, store: store, cron: cron.New(), now: time.Now}
	s.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.Do(context.Background()); err != nil {
			log.Printf("[WARN] backup failed, %v", err)
		}
	}))
	log.Printf("[INFO] backup scheduled %q, first at %s", p.Schedule, sched.Next(time.Now()).Format(time.RFC3339))
	return s, nil
}

// Run starts the scheduler and blocks until ctx is done
func (s *Service) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Printf("[DEBUG] backup scheduler stopped")
}

// Do makes a snapshot right away and removes the old ones, returns the snapshot file name
func (s *Service) Do(ctx context.Context) (string, error) {
	dst := filepath.Join(s.Location, filePrefix+s.now().Format("20060102-150405")+fileSuffix)
	if err := s.store.Backup(ctx, dst); err != nil {
		return "", err
	}
	log.Printf("[INFO] backup created %s", dst)
	if err := s.cleanup(); err != nil {
		return dst, fmt.Errorf("failed to remove old backups: %w", err)
	}
	return dst, nil
}

// cleanup removes all but the newest Keep snapshots, names sort by time
func (s *Service) cleanup() error {
	if s.Keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(s.Location)
	if err != nil {
		return err
	}
	files := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) <= s.Keep {
		return nil
	}
	sort.Strings(files)
	for _, f := range files[:len(files)-s.Keep] {
		fname := filepath.Join(s.Location, f)
		if err := os.Remove(fname); err != nil {
			return err
		}
		log.Printf("[DEBUG] old backup %s removed", fname)
	}
	return nil
}
