// Package testdb opens the shared Postgres test database for package tests.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

// lockKey serializes test packages that share one database.
const lockKey = 730214

// Open loads TEST_DATABASE_URL, migrates, and truncates every table before
// and after the test. Skips when the variable is unset.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	lock, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("lock conn: %v", err)
	}
	if _, err := lock.ExecContext(context.Background(), "SELECT pg_advisory_lock($1)", lockKey); err != nil {
		t.Fatalf("advisory lock: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	truncate(t, db)

	t.Cleanup(func() {
		truncate(t, db)
		release(lock)
		_ = sqlDB.Close()
	})
	return db
}

func release(lock *sql.Conn) {
	_, _ = lock.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
	_ = lock.Close()
}

func truncate(t *testing.T, db *gorm.DB) {
	stmt := `
TRUNCATE TABLE
	webhook_events,
	tickets,
	case_timeline,
	payments,
	invoices,
	messages,
	documents,
	cases,
	users
RESTART IDENTITY CASCADE`
	if err := db.Exec(stmt).Error; err != nil {
		t.Logf("truncate failed (ignored): %v", err)
	}
}

// User inserts an ACTIVE user with the given role.
func User(t *testing.T, db *gorm.DB, role models.Role, name string) *models.User {
	t.Helper()
	u := &models.User{
		Email:  fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Name:   name,
		Role:   role,
		Status: models.UserActive,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// Case inserts a RECEIVED case for client, assigned to staff when non-nil.
func Case(t *testing.T, db *gorm.DB, client, staff *models.User) *models.Case {
	t.Helper()
	cs := &models.Case{
		CaseNumber:      "T-" + uuid.NewString()[:12],
		Title:           "Unpaid supply invoice",
		ClientID:        client.ID,
		Status:          models.CaseReceived,
		Priority:        models.PriorityMedium,
		CreditorName:    "Creditor Ltd",
		CreditorEmail:   "accounts@creditor.example",
		CreditorPhone:   "0241234567",
		CreditorAddress: "Accra",
		DebtorName:      "Debtor Ventures",
		DebtorAddress:   "Tema",
		PrincipalAmount: decimal.NewFromInt(1000),
		TotalAmountDue:  decimal.NewFromInt(1000),
		Currency:        "GHS",
		OriginalDueDate: time.Now().AddDate(0, -2, 0),
		DebtCategory:    "TRADE",
	}
	if staff != nil {
		cs.AssignedToID = &staff.ID
	}
	if err := db.Create(cs).Error; err != nil {
		t.Fatalf("create case: %v", err)
	}
	return cs
}
