package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aldoetobex/debt-recovery-backend/internal/policy"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
)

/* ============================== JWT Claims ============================== */

// Claims represents the JWT payload we issue and expect.
type Claims struct {
	Sub  string `json:"sub"`  // user ID
	Role string `json:"role"` // CLIENT | STAFF | LEGAL | ADMIN
	jwt.RegisteredClaims
}

/* ============================== JWT Helpers ============================= */

// Tokens issues and verifies HS256 tokens with one shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given user and role.
func (t *Tokens) Issue(userID uuid.UUID, role models.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  userID.String(),
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tk *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	if _, err := uuid.Parse(claims.Sub); err != nil {
		return nil, errors.New("invalid subject")
	}
	return claims, nil
}

/* ============================== Middleware ============================== */

// RequireAuth validates a Bearer JWT and injects userID and role into the context.
func (t *Tokens) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		claims, err := t.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("userID", claims.Sub)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// MustUserID reads the authenticated user ID from context or panics (programming error).
func MustUserID(c *fiber.Ctx) string {
	if v := c.Locals("userID"); v != nil {
		return v.(string)
	}
	panic(errors.New("user not in context"))
}

// MustRole reads the authenticated user role from context or panics (programming error).
func MustRole(c *fiber.Ctx) string {
	if v := c.Locals("role"); v != nil {
		return v.(string)
	}
	panic(errors.New("role not in context"))
}

// CurrentActor builds the policy actor for this request.
func CurrentActor(c *fiber.Ctx) (policy.Actor, error) {
	id, err := uuid.Parse(MustUserID(c))
	if err != nil {
		return policy.Actor{}, fiber.ErrUnauthorized
	}
	return policy.Actor{ID: id, Role: models.Role(MustRole(c))}, nil
}

// RequireRole ensures the authenticated user has one of the given roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := models.Role(MustRole(c))
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return fiber.ErrForbidden
	}
}

// StaffOrAbove is the middle authorization tier.
func StaffOrAbove() fiber.Handler {
	return RequireRole(models.RoleStaff, models.RoleLegal, models.RoleAdmin)
}

// AdminOnly is the top authorization tier.
func AdminOnly() fiber.Handler { return RequireRole(models.RoleAdmin) }
