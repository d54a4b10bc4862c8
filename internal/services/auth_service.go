package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/repositories"
	"restaurant_booking_backend/pkg/utils"
)

// --- Custom Service Errors ---
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameExists     = errors.New("username or line user already exists")
	ErrRoleNotFound       = errors.New("specified role not found")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// AuthResponse DTO
type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// --- AuthService Interface ---
type AuthService interface {
	RegisterUser(ctx context.Context, req models.RegistrationPayload) (*models.User, error)
	LoginUser(ctx context.Context, req models.Credentials) (*AuthResponse, error)
	GetUserProfile(ctx context.Context, userID int64) (*models.User, error)
	// StaffByLineUserID resolves the staff member behind a chat account.
	StaffByLineUserID(ctx context.Context, lineUserID string) (*models.User, error)
}

// --- authService Implementation ---
type authService struct {
	authRepo      repositories.AuthRepository
	db            *sql.DB
	jwtExpiration time.Duration
}

// NewAuthService creates a new instance of AuthService. The signing secret is set via utils.SetJWTSecret.
func NewAuthService(authRepo repositories.AuthRepository, db *sql.DB, jwtExp time.Duration) AuthService {
	if jwtExp <= 0 {
		jwtExp = utils.DefaultAccessTokenTTL
	}
	return &authService{
		authRepo:      authRepo,
		db:            db,
		jwtExpiration: jwtExp,
	}
}

// RegisterUser creates a staff or admin account. Callers must already be authorised as admin.
func (s *authService) RegisterUser(ctx context.Context, req models.RegistrationPayload) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = models.RoleStaff
	case models.RoleStaff, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrRoleNotFound, req.Role)
	}

	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		FullName:     req.FullName,
		Role:         role,
		RestaurantID: req.RestaurantID,
		LineUserID:   req.LineUserID,
		IsActive:     true,
	}
	createdUserID, err := s.authRepo.CreateUser(ctx, s.db, &user, string(hashedPasswordBytes))
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	registeredUser, fetchErr := s.authRepo.FindUserByID(ctx, createdUserID)
	if fetchErr != nil {
		user.ID = createdUserID
		return &user, fmt.Errorf("user registered but failed to retrieve full details: %w", fetchErr)
	}
	utils.LogInfo("staff user registered", map[string]interface{}{"user_id": createdUserID, "role": role})
	return registeredUser, nil
}

// LoginUser handles user login and token generation.
func (s *authService) LoginUser(ctx context.Context, req models.Credentials) (*AuthResponse, error) {
	user, storedHashedPassword, err := s.authRepo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login attempt failed: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedHashedPassword), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	var restaurantID int64
	if user.RestaurantID != nil {
		restaurantID = *user.RestaurantID
	}
	accessToken, err := utils.GenerateAccessToken(user.ID, user.Username, user.Role, restaurantID, s.jwtExpiration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(s.jwtExpiration),
	}, nil
}

// GetUserProfile retrieves a user's profile by their ID.
func (s *authService) GetUserProfile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.authRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	return user, nil
}

func (s *authService) StaffByLineUserID(ctx context.Context, lineUserID string) (*models.User, error) {
	user, err := s.authRepo.FindUserByLineUserID(ctx, lineUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve staff by chat account: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserNotFound
	}
	return user, nil
}
