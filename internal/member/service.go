package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ovaphlow/pitchfork/service-club-go/internal/cache"
	"github.com/ovaphlow/pitchfork/service-club-go/internal/member/entity"
	memberrepo "github.com/ovaphlow/pitchfork/service-club-go/internal/member/repo"
	"github.com/ovaphlow/pitchfork/service-club-go/pkg/database"
)

// CacheKind is the cache namespace for member snapshots.
const CacheKind = "member"

// PostgreSQL SQLSTATE codes translated into field errors.
const (
	codeUniqueViolation     = pq.ErrorCode("23505")
	codeForeignKeyViolation = pq.ErrorCode("23503")
)

// AuthResult is what a successful login knows about the member.
type AuthResult struct {
	MemberID        int64 `json:"member_id"`
	IsAdministrator bool  `json:"administrator"`
}

// Service orchestrates the member lifecycle: validation, persistence,
// cached lookup and authentication.
type Service struct {
	repo   *memberrepo.MemberRepo
	cache  *cache.Cache
	hasher PasswordHasher
	logger *zap.SugaredLogger

	dummyOnce sync.Once
	dummyHash string
}

// NewService wires the service. A nil hasher defaults to bcrypt at cost 12,
// a nil logger to a no-op logger.
func NewService(gw *database.Gateway, c *cache.Cache, hasher PasswordHasher, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: memberrepo.NewMemberRepo(gw), cache: c, hasher: hasher, logger: logger}
}

// EnsureSchema bootstraps the member tables.
func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.repo.EnsureSchema(ctx)
}

// validate runs the field rules and, when the password is checked and
// everything passed, swaps the raw password for its hash.
func (s *Service) validate(m *entity.Member, checkPassword bool) error {
	if errs := m.Validate(checkPassword); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	if !checkPassword {
		return nil
	}
	hash, err := s.hasher.Hash(m.Password)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	m.Password = ""
	m.PasswordConfirmation = ""
	return nil
}

// Save inserts a new member, changes the password of an existing member when
// a password is set, or otherwise updates the profile of an existing member.
func (s *Service) Save(ctx context.Context, m *entity.Member) error {
	var err error
	switch {
	case !m.Persisted():
		err = s.insert(ctx, m)
	case m.Password != "":
		err = s.updatePassword(ctx, m)
	default:
		err = s.update(ctx, m)
	}
	return translate(err)
}

func (s *Service) insert(ctx context.Context, m *entity.Member) error {
	if err := s.validate(m, true); err != nil {
		return err
	}
	id, err := s.repo.Insert(ctx, m)
	if err != nil {
		return err
	}
	m.ID = id
	m.PasswordHash = ""
	s.cache.Forget(CacheKind, id)
	s.logger.Infow("member registered", "member_id", id)
	return nil
}

func (s *Service) update(ctx context.Context, m *entity.Member) error {
	if err := s.validate(m, false); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return err
	}
	s.cache.Forget(CacheKind, m.ID)
	s.logger.Infow("member updated", "member_id", m.ID)
	return nil
}

func (s *Service) updatePassword(ctx context.Context, m *entity.Member) error {
	if err := s.validate(m, true); err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, m.ID, m.PasswordHash); err != nil {
		return err
	}
	m.PasswordHash = ""
	s.cache.Forget(CacheKind, m.ID)
	s.logger.Infow("member password changed", "member_id", m.ID)
	return nil
}

// translate turns constraint violations into field errors. Everything else
// passes through unchanged.
func translate(err error) error {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return fieldError(entity.FieldEmail, "The email address is already in use.")
	case codeForeignKeyViolation:
		return fieldError(entity.FieldPostalCode, "Invalid postal code.")
	}
	return err
}

// Delete tombstones the cached entry and removes the member from storage.
func (s *Service) Delete(ctx context.Context, id int64) error {
	s.cache.Set(CacheKind, id, nil)
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infow("member deleted", "member_id", id)
	return nil
}

// DeleteMember deletes m by its id.
func (s *Service) DeleteMember(ctx context.Context, m *entity.Member) error {
	return s.Delete(ctx, m.ID)
}

// Find returns the member with id, reading through the cache. Known-absent
// ids are answered from the cache without touching storage.
func (s *Service) Find(ctx context.Context, id int64) (*entity.Member, error) {
	if v, ok := s.cache.Get(CacheKind, id); ok {
		cached, _ := v.(*entity.Member)
		if cached == nil {
			return nil, ErrMemberNotFound
		}
		return cached.Clone(), nil
	}

	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		s.cache.Set(CacheKind, id, nil)
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	s.cache.Set(CacheKind, id, m.Clone())
	return m, nil
}

// FindAll lists every member by last name, then first name, and refreshes
// the cache with each of them.
func (s *Service) FindAll(ctx context.Context) ([]*entity.Member, error) {
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	// the database collation may not be Norwegian; settle the order here.
	// x/text ships no Norwegian tailoring (no/nb fall back to root, which sorts
	// Å with A); Danish orders æ, ø, å after z exactly as Norwegian does.
	// Collators are not safe for concurrent use, so each call gets its own.
	nameCollator := collate.New(language.Danish, collate.IgnoreCase)
	sort.SliceStable(members, func(i, j int) bool {
		if c := nameCollator.CompareString(members[i].LastName, members[j].LastName); c != 0 {
			return c < 0
		}
		return nameCollator.CompareString(members[i].FirstName, members[j].FirstName) < 0
	})
	for _, m := range members {
		s.cache.Set(CacheKind, m.ID, m.Clone())
	}
	return members, nil
}

// Authenticate checks secret against the member identified by its numeric id
// or its email address. Every failure is the same *AuthenticationError.
func (s *Service) Authenticate(ctx context.Context, identifier, secret string) (*AuthResult, error) {
	// only exact identifiers log in; padded input never reaches storage
	if identifier == "" || identifier != strings.TrimSpace(identifier) {
		s.hasher.Verify(s.dummy(), secret)
		return nil, &AuthenticationError{}
	}
	// ids start at 1, so 0 only lets the email branch match
	id, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil || id < 0 {
		id = 0
	}

	creds, err := s.repo.FindCredentials(ctx, id, identifier)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if len(creds) != 1 {
		if len(creds) > 1 {
			s.logger.Warnw("ambiguous login identifier", "matches", len(creds))
		}
		s.hasher.Verify(s.dummy(), secret)
		return nil, &AuthenticationError{}
	}
	if !s.hasher.Verify(creds[0].PasswordHash, secret) {
		return nil, &AuthenticationError{}
	}
	return &AuthResult{MemberID: creds[0].MemberID, IsAdministrator: creds[0].Administrator}, nil
}

// dummy returns a hash to verify against when no member matched, so that
// unknown identifiers cost as much as wrong passwords.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-member-password")
		if err != nil {
			s.logger.Warnw("dummy hash failed", "err", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
