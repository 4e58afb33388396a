// services/cleanup.go - Background Retention Sweeps
package services

import (
	"log"
	"time"
	"typerush/models"

	"gorm.io/gorm"
)

const cleanupSweepInterval = 1 * time.Hour

// CleanupService periodically deletes payment events past the retention
// window. The dedup table only needs to outlive Whop's webhook retry horizon;
// rows older than that just grow the table.
type CleanupService struct {
	db        *gorm.DB
	retention time.Duration
	stop      chan struct{}
}

func NewCleanupService(db *gorm.DB, retention time.Duration) *CleanupService {
	return &CleanupService{
		db:        db,
		retention: retention,
		stop:      make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *CleanupService) Start() {
	go func() {
		ticker := time.NewTicker(cleanupSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				deleted, err := s.SweepPaymentEvents()
				if err != nil {
					log.Printf("Payment event sweep failed: %v", err)
				} else if deleted > 0 {
					log.Printf("🧹 Swept %d expired payment events", deleted)
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (s *CleanupService) Stop() {
	close(s.stop)
}

// SweepPaymentEvents deletes payment events older than the retention window
// and reports how many rows went away.
func (s *CleanupService) SweepPaymentEvents() (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-s.retention)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.PaymentEvent{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
