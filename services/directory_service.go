package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"OrgVerify/config"
	"OrgVerify/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Directory resolves credentials and actor references to identities.
type Directory interface {
	Authenticate(ctx context.Context, token string) (*models.Actor, error)
	Resolve(ctx context.Context, ref models.ActorRef) (*models.Actor, error)
}

type DirectoryService struct {
	db        *gorm.DB
	jwtSecret []byte
	now       func() time.Time
}

func NewDirectoryService(db *gorm.DB, cfg *config.AuthConfig) *DirectoryService {
	return &DirectoryService{
		db:        db,
		jwtSecret: []byte(cfg.JWTSecret),
		now:       time.Now,
	}
}

type Claims struct {
	ActorID   uint             `json:"actor_id"`
	ActorKind models.ActorKind `json:"actor_kind"`
	jwt.RegisteredClaims
}

// IssueToken signs a credential for ref. Sessions are issued elsewhere; this
// exists for tooling and tests.
func (s *DirectoryService) IssueToken(ref models.ActorRef, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		ActorID:   ref.ID,
		ActorKind: ref.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *DirectoryService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

func (s *DirectoryService) Authenticate(ctx context.Context, tokenString string) (*models.Actor, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing credential: %w", ErrUnauthenticated)
	}
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if _, err := models.ParseActorKind(string(claims.ActorKind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	actor, err := s.Resolve(ctx, models.ActorRef{Kind: claims.ActorKind, ID: claims.ActorID})
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("unknown actor %d: %w", claims.ActorID, ErrUnauthenticated)
	}
	return actor, err
}

func (s *DirectoryService) Resolve(ctx context.Context, ref models.ActorRef) (*models.Actor, error) {
	db := s.db.WithContext(ctx)
	var err error
	var actor *models.Actor

	switch ref.Kind {
	case models.KindEndUser:
		var user models.User
		if err = db.First(&user, ref.ID).Error; err == nil {
			actor = user.Actor()
		}
	case models.KindSupportAdmin:
		var admin models.Admin
		if err = db.First(&admin, ref.ID).Error; err == nil {
			actor = admin.Actor()
		}
	case models.KindEmployee:
		var employee models.Employee
		if err = db.First(&employee, ref.ID).Error; err == nil {
			actor = employee.Actor()
		}
	default:
		return nil, fmt.Errorf("actor kind %q: %w", ref.Kind, ErrInvalidInput)
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("actor %s: %w", ref, ErrNotFound)
		}
		return nil, storeErr("resolve actor", err)
	}
	return actor, nil
}
