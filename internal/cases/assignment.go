package cases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

// StaffLoad is one row of the assignment snapshot.
type StaffLoad struct {
	StaffID   uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	OpenCases int64       `json:"open_cases"`
}

// PickLeastLoaded returns the entry with the fewest open cases. Ties go to
// the earliest entry, so the snapshot order decides.
func PickLeastLoaded(loads []StaffLoad) (StaffLoad, bool) {
	if len(loads) == 0 {
		return StaffLoad{}, false
	}
	best := loads[0]
	for _, l := range loads[1:] {
		if l.OpenCases < best.OpenCases {
			best = l
		}
	}
	return best, true
}

// StaffLoads snapshots active users with the given roles and their count of
// non-CLOSED assigned cases, oldest account first.
func StaffLoads(ctx context.Context, db *gorm.DB, roles ...models.Role) ([]StaffLoad, error) {
	if len(roles) == 0 {
		roles = []models.Role{models.RoleStaff}
	}
	var loads []StaffLoad
	err := db.WithContext(ctx).
		Table("users").
		Select(`users.id AS staff_id, users.name, users.email, users.role,
			COUNT(cases.id) AS open_cases`).
		Joins("LEFT JOIN cases ON cases.assigned_to_id = users.id AND cases.status <> ?", models.CaseClosed).
		Where("users.role IN ? AND users.status = ?", roles, models.UserActive).
		Group("users.id").
		Order("users.created_at ASC, users.id ASC").
		Scan(&loads).Error
	return loads, err
}
