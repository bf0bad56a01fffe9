package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
	"github.com/scholarproof/api/utils/auth"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedSessions(); err != nil {
		return fmt.Errorf("failed to seed sessions: %w", err)
	}

	if err := s.SeedInviteCodes(); err != nil {
		return fmt.Errorf("failed to seed invite codes: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	// Check if admin already exists
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	// Get admin credentials from environment variables
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️  ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Name:         "System Administrator",
		Role:         model.RoleAdmin,
		TokenVersion: 0,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedSessions creates a starter set of academic sessions
func (s *Seeder) SeedSessions() error {
	var count int64
	if err := s.db.Model(&model.Session{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Sessions already exist, skipping...")
		return nil
	}

	now := time.Now().UTC()
	year := now.Year()

	sessions := []model.Session{
		{
			Name:      fmt.Sprintf("Spring Cohort %d", year),
			StartDate: time.Date(year, time.January, 15, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, time.May, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			Name:      fmt.Sprintf("Fall Cohort %d", year),
			StartDate: time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, time.December, 20, 0, 0, 0, 0, time.UTC),
		},
	}

	for i := range sessions {
		sessions[i].Status = model.DeriveStatus("", sessions[i].StartDate, sessions[i].EndDate, now)
	}

	if err := s.db.Create(&sessions).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d sessions\n", len(sessions))
	return nil
}

// SeedInviteCodes mints one lecturer and one admin invite code so the first
// staff accounts can be registered
func (s *Seeder) SeedInviteCodes() error {
	var count int64
	if err := s.db.Model(&model.InviteCode{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Invite codes already exist, skipping...")
		return nil
	}

	codes := []model.InviteCode{
		{Code: "SP-SEED-LECTURER", Role: model.RoleLecturer},
		{Code: "SP-SEED-ADMIN", Role: model.RoleAdmin},
	}

	if err := s.db.Create(&codes).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d invite codes\n", len(codes))
	return nil
}

// RunSeeds runs the full seed set
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
