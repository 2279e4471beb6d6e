package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"orderbot_backend/internal/auth/repository"
	"orderbot_backend/platform/apperr"
	"orderbot_backend/platform/logger"
)

type fakeRepo struct {
	repository.Repository
	byPhone map[string]repository.User
	byChat  map[int64]repository.User
	byID    map[uuid.UUID]repository.User
	created []repository.CreateUserParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byPhone: map[string]repository.User{},
		byChat:  map[int64]repository.User{},
		byID:    map[uuid.UUID]repository.User{},
	}
}

func (f *fakeRepo) add(u repository.User) repository.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.byPhone[u.Phone] = u
	f.byID[u.ID] = u
	if u.ChatID != 0 {
		f.byChat[u.ChatID] = u
	}
	return u
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateUserParams) (repository.User, error) {
	if _, exists := f.byPhone[params.Phone]; exists {
		return repository.User{}, apperr.Conflict("user with this phone already exists")
	}
	f.created = append(f.created, params)
	return f.add(repository.User{
		ChatID:       params.ChatID,
		FIO:          params.FIO,
		Phone:        params.Phone,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
	}), nil
}

func (f *fakeRepo) GetByPhone(_ context.Context, phone string) (repository.User, error) {
	if u, ok := f.byPhone[phone]; ok {
		return u, nil
	}
	return repository.User{}, apperr.NotFound("user not found")
}

func (f *fakeRepo) GetByChatID(_ context.Context, chatID int64) (repository.User, error) {
	if u, ok := f.byChat[chatID]; ok {
		return u, nil
	}
	return repository.User{}, apperr.NotFound("user not found")
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return repository.User{}, apperr.NotFound("user not found")
}

type fakeCfg struct{}

func (fakeCfg) GetJWTAccessSecret() string         { return "access-secret" }
func (fakeCfg) GetJWTRefreshSecret() string        { return "refresh-secret" }
func (fakeCfg) GetAccessTokenTTL() time.Duration   { return 15 * time.Minute }
func (fakeCfg) GetRefreshTokenTTL() time.Duration  { return 720 * time.Hour }

func newTestService(repo repository.Repository) *Service {
	return New(repo, fakeCfg{}, logger.New("development"))
}

func TestRegisterNormalizesPhone(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	user, err := svc.Register(context.Background(), "Иванов Иван", "8 (912) 345-67-89", "password123", repository.RoleManager)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Phone != "+79123456789" {
		t.Fatalf("phone = %q, want +79123456789", user.Phone)
	}
	if user.Role != repository.RoleManager {
		t.Fatalf("role = %q", user.Role)
	}
	if len(repo.created) != 1 || repo.created[0].PasswordHash == "password123" {
		t.Fatal("password stored unhashed")
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newTestService(newFakeRepo())

	if _, err := svc.Register(context.Background(), "x", "not-a-phone", "password123", repository.RoleClient); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad phone err = %v", err)
	}
	if _, err := svc.Register(context.Background(), "x", "+79123456789", "short", repository.RoleClient); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("short password err = %v", err)
	}
	if _, err := svc.Register(context.Background(), "x", "+79123456789", "password123", "superuser"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("bad role err = %v", err)
	}
}

func TestSignInAndRefresh(t *testing.T) {
	repo := newFakeRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	repo.add(repository.User{Phone: "+79123456789", PasswordHash: string(hash), Role: repository.RoleAdmin})

	svc := newTestService(repo)

	pair, err := svc.SignIn(context.Background(), "+79123456789", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token pair")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens are identical")
	}

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.AccessToken == "" {
		t.Fatal("refresh produced empty access token")
	}

	// An access token must not pass as a refresh token.
	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("access-as-refresh err = %v", err)
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	repo := newFakeRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	repo.add(repository.User{Phone: "+79123456789", PasswordHash: string(hash)})

	// Bot-provisioned account without a password.
	repo.add(repository.User{Phone: "+79990001122", ChatID: 5})

	svc := newTestService(repo)

	if _, err := svc.SignIn(context.Background(), "+79123456789", "wrong"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "+70000000000", "password123"); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("unknown phone err = %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "+79990001122", ""); !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("passwordless account err = %v", err)
	}
}

func TestEnsureBotUser(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	user, err := svc.EnsureBotUser(context.Background(), 100, "Петров", "89123456789")
	if err != nil {
		t.Fatalf("EnsureBotUser: %v", err)
	}
	if user.Phone != "+79123456789" || user.Role != repository.RoleClient {
		t.Fatalf("user = %+v", user)
	}

	// Second call finds the same user by chat id.
	again, err := svc.EnsureBotUser(context.Background(), 100, "", "")
	if err != nil {
		t.Fatalf("EnsureBotUser second call: %v", err)
	}
	if again.ID != user.ID {
		t.Fatal("second call created a different user")
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d users, want 1", len(repo.created))
	}
}

func TestEnsureBotUserPhoneConflictReusesAccount(t *testing.T) {
	repo := newFakeRepo()
	existing := repo.add(repository.User{Phone: "+79123456789", Role: repository.RoleClient})

	svc := newTestService(repo)

	user, err := svc.EnsureBotUser(context.Background(), 200, "Сидоров", "+7 912 345 67 89")
	if err != nil {
		t.Fatalf("EnsureBotUser: %v", err)
	}
	if user.ID != existing.ID {
		t.Fatal("conflict did not fall back to the existing account")
	}
}
