// Package auth issues and validates the bearer tokens the API runs on.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"cryptoworld/internal/balance"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	pool    *pgxpool.Pool
	issuer  string
	secret  []byte
	ttl     time.Duration
	balance *balance.Store
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func NewService(pool *pgxpool.Pool, issuer string, secret []byte, ttl time.Duration, bal *balance.Store) *Service {
	return &Service{pool: pool, issuer: issuer, secret: secret, ttl: ttl, balance: bal}
}

// Register creates the user, its credentials, and the demo profile with
// the starting balance, then returns a signed token.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", errors.New("email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var userID string
	if err := tx.QueryRow(ctx, "insert into users (email) values ($1) returning id", email).Scan(&userID); err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, "insert into user_credentials (user_id, password_hash) values ($1, $2)", userID, string(hash)); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	if err := s.balance.Ensure(ctx, userID, balance.DefaultBalance); err != nil {
		return "", err
	}
	return s.signToken(userID)
}

// Login verifies the credentials and returns a signed token. The profile
// row is ensured here too so accounts created before the profiles table
// existed still get their demo balance.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var userID, hash string
	err := s.pool.QueryRow(ctx,
		"select u.id, c.password_hash from users u join user_credentials c on c.user_id = u.id where u.email = $1",
		email,
	).Scan(&userID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if err := s.balance.Ensure(ctx, userID, balance.DefaultBalance); err != nil {
		return "", err
	}
	return s.signToken(userID)
}

// GetUser loads the public profile for an authenticated user.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, "select id, email from users where id = $1", userID).Scan(&u.ID, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	return u, err
}

func (s *Service) signToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// ParseToken validates a token and returns the user id it was issued to.
func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return "", errors.New("invalid token issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
