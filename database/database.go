package database

import (
	"fmt"
	"log"

	config "github.com/dersly/backend/configs"
	"github.com/dersly/backend/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		DisableNestedTransaction:                 true,
	})
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	fmt.Println("✅ Database connected successfully")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.Branch{},
		&models.Subject{},
		&models.Teacher{},
		&models.BankAccount{},
		&models.AvailabilityWindow{},
		&models.Appointment{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.DeferredJob{},
	)
	if err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}

	// Partial indexes AutoMigrate cannot express. The slot index is the
	// authoritative double-booking guard: two concurrent creates for the same
	// teacher/instant cannot both commit. The earning index enforces
	// one EARNING ledger row per appointment.
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_active_slot
			ON appointments (teacher_id, scheduled_at)
			WHERE status NOT IN ('COMPLETED', 'CANCELLED', 'EXPIRED', 'NO_SHOW')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_wallet_txns_earning_appointment
			ON wallet_transactions (appointment_id)
			WHERE type = 'EARNING'`,
	}
	for _, stmt := range statements {
		if err := DB.Exec(stmt).Error; err != nil {
			log.Fatalf("🔥 Failed to create index: %v", err)
		}
	}

	fmt.Println("✅ Database migration successful")
}

func SeedAdmin() {
	adminEmail := config.Config("ADMIN_EMAIL")
	adminPassword := config.Config("ADMIN_PASSWORD")

	var count int64
	err := DB.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count).Error
	if err != nil {
		log.Fatalf("🔥 Failed to check for admin user: %v", err)
		return
	}

	if count > 0 {
		log.Println("Admin user already exists.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("🔥 Failed to hash admin password: %v", err)
		return
	}

	adminUser := models.User{
		FullName: config.Config("ADMIN_FULL_NAME"),
		Email:    adminEmail,
		Password: string(hashedPassword),
		Role:     "admin",
	}

	if err := DB.Create(&adminUser).Error; err != nil {
		log.Fatalf("🔥 Failed to seed admin user: %v", err)
		return
	}

	log.Println("✅ Admin user seeded successfully")
}
