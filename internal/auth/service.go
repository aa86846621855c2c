package auth

import (
	"errors"
	"net/http"

	"github.com/kamilszcz/StockMarket/internal/user"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInternalError      = errors.New("internal server error")
)

// UserService is the slice of the user service auth depends on.
type UserService interface {
	GetUserByID(userID string) (*user.User, error)
	GetUserByLoginOrEmail(loginOrEmail string) (*user.User, error)
}

type Service interface {
	Login(loginOrEmail, password string) (accessToken, refreshToken string, err error)
	NewAccessToken(userID string) (string, error)
	JWTAccessTokenMiddleware() func(http.Handler) http.Handler
	JWTRefreshTokenMiddleware() func(http.Handler) http.Handler
}

type service struct {
	userService UserService
	jwtManager  JWTManagerInterface
}

func NewAuthService(userService UserService, jwtManager JWTManagerInterface) Service {
	return &service{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

func (s *service) Login(loginOrEmail, password string) (string, string, error) {
	existingUser, err := s.userService.GetUserByLoginOrEmail(loginOrEmail)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", ErrInternalError
	}

	if err := bcrypt.CompareHashAndPassword([]byte(existingUser.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateAccessJWT(existingUser.ID, defaultJWTDuration)
	if err != nil {
		return "", "", ErrInternalError
	}

	refreshToken, err := s.jwtManager.GenerateRefreshJWT(existingUser.ID, existingUser.HashToken, defaultJWTRefreshDuration)
	if err != nil {
		return "", "", ErrInternalError
	}

	return accessToken, refreshToken, nil
}

func (s *service) NewAccessToken(userID string) (string, error) {
	return s.jwtManager.GenerateAccessJWT(userID, defaultJWTDuration)
}
