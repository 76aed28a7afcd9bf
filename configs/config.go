package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func Config(key string) string {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	return os.Getenv(key)
}

// Settings groups the tunables the lifecycle engine reads at boot. Rates and
// deadlines are snapshotted into appointments at creation, so changing them
// never rewrites existing bookings.
type Settings struct {
	CommissionPercent         decimal.Decimal
	BankTransferDeadlineHours int
	ExpireGraceHours          int
	CancellationDeadlineHours int
	MinBookingHours           int
	MaxBookingDays            int
	AutoCompleteDelayMinutes  int
	Timezone                  *time.Location
}

func LoadSettings() Settings {
	tz, err := time.LoadLocation(Config("APP_TIMEZONE"))
	if err != nil {
		log.Println("Warning: APP_TIMEZONE invalid, falling back to UTC")
		tz = time.UTC
	}

	return Settings{
		CommissionPercent:         decimalEnv("PLATFORM_COMMISSION_PERCENT", "20"),
		BankTransferDeadlineHours: intEnv("BANK_TRANSFER_DEADLINE_HOURS", 24),
		ExpireGraceHours:          intEnv("EXPIRE_GRACE_HOURS", 1),
		CancellationDeadlineHours: intEnv("CANCELLATION_DEADLINE_HOURS", 12),
		MinBookingHours:           intEnv("MIN_BOOKING_HOURS", 2),
		MaxBookingDays:            intEnv("MAX_BOOKING_DAYS", 60),
		AutoCompleteDelayMinutes:  intEnv("AUTO_COMPLETE_DELAY_MINUTES", 30),
		Timezone:                  tz,
	}
}

func intEnv(key string, fallback int) int {
	raw := Config(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: %s is not an integer, using default %d", key, fallback)
		return fallback
	}
	return v
}

func decimalEnv(key string, fallback string) decimal.Decimal {
	raw := Config(key)
	if raw == "" {
		raw = fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Warning: %s is not a decimal, using default %s", key, fallback)
		v, _ = decimal.NewFromString(fallback)
	}
	return v
}
