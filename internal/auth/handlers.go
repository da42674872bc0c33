package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aldoetobex/debt-recovery-backend/pkg/database"
	"github.com/aldoetobex/debt-recovery-backend/pkg/models"
	"github.com/aldoetobex/debt-recovery-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup. Public signup always creates a CLIENT.
type SignupRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=80"`
	Email    string  `json:"email" validate:"required,email,max=120"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Company  *string `json:"company" validate:"omitempty,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Standard auth response
type AuthResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
}

// Profile response for /me
type UserProfileResponse struct {
	ID        uuid.UUID         `json:"id"`
	Email     string            `json:"email"`
	Role      models.Role       `json:"role"`
	Name      string            `json:"name"`
	Company   *string           `json:"company,omitempty"`
	Phone     *string           `json:"phone,omitempty"`
	Status    models.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

/* ============================== Handler ================================= */

type Handler struct {
	db     *gorm.DB
	tokens *Tokens
}

func NewHandler(db *gorm.DB, tokens *Tokens) *Handler { return &Handler{db: db, tokens: tokens} }

// HashPassword wraps bcrypt with the default cost.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new client account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return err
	}

	u := models.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleClient,
		Name:         in.Name,
		Company:      in.Company,
		Phone:        in.Phone,
		Status:       models.UserActive,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fiber.NewError(fiber.StatusConflict, "email already exists")
		}
		return err
	}

	token, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, Role: u.Role})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", in.Email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrUnauthorized
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}
	if u.Status == models.UserSuspended {
		return fiber.NewError(fiber.StatusForbidden, "account suspended")
	}

	token, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return err
	}
	return c.JSON(AuthResponse{Token: token, Role: u.Role})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Description  Return the profile of the authenticated user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := c.Locals("userID")
	if userID == nil {
		return fiber.ErrUnauthorized
	}

	var u models.User
	if err := h.db.WithContext(c.UserContext()).First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	return c.JSON(UserProfileResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Name:      u.Name,
		Company:   u.Company,
		Phone:     u.Phone,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	})
}
