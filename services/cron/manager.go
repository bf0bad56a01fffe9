package cron

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
)

// CronManager manages all scheduled background jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB) *CronManager {
	return &CronManager{
		cron: cron.New(),
		db:   db,
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Hourly: roll session statuses forward from their dates
	_, err := m.cron.AddFunc("0 * * * *", func() {
		m.runJob("rollover_session_statuses", m.RolloverSessionStatuses)
	})
	if err != nil {
		return err
	}

	// 2. Daily at 2 AM: drop expired token blacklist entries
	_, err = m.cron.AddFunc("0 2 * * *", func() {
		m.runJob("cleanup_token_blacklist", m.CleanupTokenBlacklist)
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: expire unused invite codes past their shelf life
	_, err = m.cron.AddFunc("0 3 * * *", func() {
		m.runJob("expire_stale_invite_codes", m.ExpireStaleInviteCodes)
	})
	if err != nil {
		return err
	}

	return nil
}

// runJob executes a job and records its outcome in the cron_job_logs table
func (m *CronManager) runJob(name string, job func() (string, error)) {
	started := time.Now()

	entry := model.CronJobLog{
		JobName:   name,
		Status:    "started",
		StartedAt: started,
	}
	if err := m.db.Create(&entry).Error; err != nil {
		log.Printf("cron: failed to log start of %s: %v", name, err)
	}

	message, err := job()

	completed := time.Now()
	entry.CompletedAt = &completed
	entry.Duration = int(completed.Sub(started).Milliseconds())
	entry.Message = message

	if err != nil {
		entry.Status = "failed"
		entry.ErrorMsg = err.Error()
		log.Printf("cron: job %s failed: %v", name, err)
	} else {
		entry.Status = "completed"
	}

	if err := m.db.Save(&entry).Error; err != nil {
		log.Printf("cron: failed to log completion of %s: %v", name, err)
	}
}
