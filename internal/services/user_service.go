package services

import (
	"context"
	"errors"
	"strings"

	"stitchmart/internal/common"
	"stitchmart/internal/models"
	"stitchmart/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
}

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.User, error)
	// ToggleFavorite flips membership of designID in the user's favorites and
	// reports whether it is a favorite afterwards.
	ToggleFavorite(ctx context.Context, userID, designID uuid.UUID) (bool, error)
}

type userService struct {
	users      repositories.UserRepository
	designs    repositories.DesignRepository
	tokens     TokenIssuer
	bcryptCost int
	logger     *zap.Logger
}

func NewUserService(users repositories.UserRepository, designs repositories.DesignRepository, tokens TokenIssuer, logger *zap.Logger) UserService {
	return &userService{
		users:      users,
		designs:    designs,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
}

var errInvalidCredentials = common.Unauthorized("invalid email or password")

func (s *userService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := models.NormalizeEmail(req.Email)

	taken, err := s.users.Exists(ctx, username, email, nil)
	if err != nil {
		return nil, common.Upstream("check user", err)
	}
	if taken {
		return nil, common.Conflict("username or email already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, common.Validation("password cannot be used", map[string]string{"password": err.Error()})
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Favorites:    []uuid.UUID{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isConflict(err) {
			return nil, common.Conflict("username or email already in use")
		}
		return nil, storeError(err, "User")
	}
	s.logger.Info("user registered", zap.Stringer("user_id", user.ID))

	return s.authResponse(user)
}

func (s *userService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, storeError(err, "User")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	return s.authResponse(user)
}

func (s *userService) authResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, common.Upstream("issue token", err)
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (s *userService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError(err, "User")
	}
	return user, nil
}

func (s *userService) Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries, err := s.designs.Summaries(ctx, user.Favorites)
	if err != nil {
		return nil, common.Upstream("load favorites", err)
	}
	favorites := make([]models.DesignSummary, 0, len(user.Favorites))
	for _, id := range user.Favorites {
		if d, ok := summaries[id]; ok {
			favorites = append(favorites, d)
		}
	}
	return &models.Profile{User: user, FavoriteDesigns: favorites}, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if upd.Username != nil {
		user.Username = strings.TrimSpace(*upd.Username)
		if len(user.Username) < 3 {
			fields["username"] = "username must be at least 3 characters"
		}
	}
	if upd.Email != nil {
		user.Email = models.NormalizeEmail(*upd.Email)
		if user.Email == "" {
			fields["email"] = "email is required"
		}
	}
	if len(fields) > 0 {
		return nil, common.Validation("Validation failed", fields)
	}

	taken, err := s.users.Exists(ctx, user.Username, user.Email, &userID)
	if err != nil {
		return nil, common.Upstream("check user", err)
	}
	if taken {
		return nil, common.Conflict("username or email already in use")
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if isConflict(err) {
			return nil, common.Conflict("username or email already in use")
		}
		return nil, storeError(err, "User")
	}
	return user, nil
}

func (s *userService) ToggleFavorite(ctx context.Context, userID, designID uuid.UUID) (bool, error) {
	if _, err := s.designs.GetByID(ctx, designID); err != nil {
		return false, storeError(err, "Design")
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return false, err
	}

	favorited := user.ToggleFavorite(designID)
	if err := s.users.SetFavorites(ctx, userID, user.Favorites); err != nil {
		return false, storeError(err, "User")
	}
	return favorited, nil
}
