// Package directory is the user registry: registration, sign-in and the
// federated sign-in handshake.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
)

type Store interface {
	RegisterUser(ctx context.Context, u models.User, passwordHash string) error
	GetUserByID(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	PasswordHash(ctx context.Context, userID string) (string, error)
	SetProfilePic(ctx context.Context, id, url string) error
}

type Service struct {
	store    Store
	verifier IdentityVerifier
	pub      realtime.Publisher
	log      *zap.Logger
	validate *validator.Validate
}

// New: verifier и pub могут быть nil (без Google и без realtime).
func New(store Store, verifier IdentityVerifier, pub realtime.Publisher, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		verifier: verifier,
		pub:      pub,
		log:      logging.OrNop(log),
		validate: newValidator(),
	}
}

// Register creates a profile with a password or a verified Google identity.
func (s *Service) Register(ctx context.Context, reg Registration, cred Credential) (models.User, error) {
	reg.normalize()
	if err := s.validate.Struct(reg); err != nil {
		return models.User{}, validationError(err)
	}

	id, hash := "", ""
	switch {
	case cred.IDToken != "":
		a, err := s.verify(ctx, cred.IDToken)
		if err != nil {
			return models.User{}, err
		}
		if !strings.EqualFold(a.Email, reg.Email) {
			return models.User{}, apperr.ErrIdentityMismatched
		}
		id = a.Subject
	case cred.Password != "":
		if len(cred.Password) < minPasswordLen {
			return models.User{}, apperr.ErrWeakCredential
		}
		h, err := bcrypt.GenerateFromPassword([]byte(cred.Password), bcrypt.DefaultCost)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		id, hash = uuid.NewString(), string(h)
	default:
		return models.User{}, apperr.Validation("missing_fields", "Please fill in all fields")
	}

	rating := models.DefaultRating
	u := models.User{
		ID:          id,
		Name:        reg.Name,
		Email:       reg.Email,
		Role:        models.DefaultRole,
		UserType:    reg.UserType,
		Subjects:    reg.Subjects,
		Rating:      &rating,
		CollegeID:   reg.CollegeID,
		CollegeName: reg.CollegeName,
		ProfilePic:  reg.ProfilePic,
	}
	if err := s.store.RegisterUser(ctx, u, hash); err != nil {
		return models.User{}, fmt.Errorf("register %s: %w", u.Email, err)
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("college", u.CollegeName))
	realtime.Emit(ctx, s.pub, s.log, realtime.TopicUsers, "created", u)
	return u, nil
}

// Login checks a password, or accepts a valid Google token for the same email.
func (s *Service) Login(ctx context.Context, email string, cred Credential) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, err
	}

	if cred.IDToken != "" {
		a, err := s.verify(ctx, cred.IDToken)
		if err != nil {
			return models.User{}, err
		}
		if !strings.EqualFold(a.Email, email) {
			return models.User{}, apperr.ErrIdentityMismatched
		}
		return u, nil
	}

	hash, err := s.store.PasswordHash(ctx, u.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("load credential: %w", err)
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(cred.Password)) != nil {
		return models.User{}, apperr.ErrInvalidCredential
	}
	return u, nil
}

// LoginWithFederatedIdentity looks the user up by email; a missing user yields
// NewUserRequired with prefill data, an existing one gets its picture back-filled.
func (s *Service) LoginWithFederatedIdentity(ctx context.Context, email, displayName, pictureURL string) (Resolution, error) {
	return s.federated(ctx, Assertion{Email: email, Name: displayName, PictureURL: pictureURL})
}

// FederatedLogin verifies a Google ID token and runs the federated handshake.
func (s *Service) FederatedLogin(ctx context.Context, rawIDToken string) (Resolution, error) {
	a, err := s.verify(ctx, rawIDToken)
	if err != nil {
		return Resolution{}, err
	}
	return s.federated(ctx, a)
}

func (s *Service) federated(ctx context.Context, a Assertion) (Resolution, error) {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	var existing *models.User
	u, err := s.store.GetUserByEmail(ctx, a.Email)
	switch {
	case err == nil:
		existing = &u
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return Resolution{}, err
	}

	res := Resolve(existing, a)
	if res.BackfillPicture != "" {
		if err := s.store.SetProfilePic(ctx, existing.ID, res.BackfillPicture); err != nil {
			s.log.Warn("profile picture backfill failed", zap.String("user_id", existing.ID), zap.Error(err))
		} else {
			existing.ProfilePic = res.BackfillPicture
			realtime.Emit(ctx, s.pub, s.log, realtime.TopicUsers, "updated", *existing)
		}
	}
	return res, nil
}

func (s *Service) Profile(ctx context.Context, id string) (models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

func (s *Service) verify(ctx context.Context, raw string) (Assertion, error) {
	if s.verifier == nil {
		return Assertion{}, apperr.Validation("google_disabled", "Google sign-in is not configured")
	}
	a, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return Assertion{}, apperr.Wrap(apperr.ErrInvalidCredential, err)
	}
	return a, nil
}
