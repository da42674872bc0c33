package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/debt-recovery-backend/internal/auth"
	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Create the initial admin, staff and legal accounts",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Password for every seeded account",
			EnvVars: []string{"SEED_PASSWORD"},
			Value:   "ChangeMe123!",
		},
		&cli.StringFlag{
			Name:    "domain",
			Usage:   "Email domain for seeded accounts",
			EnvVars: []string{"SEED_EMAIL_DOMAIN"},
			Value:   "debtrecovery.local",
		},
	},
	Action: seed,
}

type seedUser struct {
	local string
	name  string
	role  models.Role
}

var seedUsers = []seedUser{
	{"admin", "System Administrator", models.RoleAdmin},
	{"staff", "Recovery Officer", models.RoleStaff},
	{"legal", "Legal Counsel", models.RoleLegal},
}

func seed(cCtx *cli.Context) error {
	_, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := database.Migrate(db); err != nil {
		return err
	}

	hash, err := auth.HashPassword(cCtx.String("password"))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	domain := strings.TrimPrefix(cCtx.String("domain"), "@")

	return db.WithContext(cCtx.Context).Transaction(func(tx *gorm.DB) error {
		for _, su := range seedUsers {
			u := models.User{
				Email:        su.local + "@" + domain,
				PasswordHash: hash,
				Name:         su.name,
				Role:         su.role,
				Status:       models.UserActive,
			}
			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).Create(&u)
			if res.Error != nil {
				return fmt.Errorf("seed %s: %w", u.Email, res.Error)
			}
			if res.RowsAffected == 0 {
				logger.Info("account exists, skipped", zap.String("email", u.Email))
				continue
			}
			logger.Info("account seeded", zap.String("email", u.Email), zap.String("role", string(u.Role)))
		}
		return nil
	})
}
