package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/password"
	redisstore "github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/redis"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/repository"
)

func newAuthService() *AuthService {
	store := repository.NewMemoryStore()
	return NewAuthService(
		store.Users(),
		password.NewBcryptHasher(bcrypt.MinCost),
		NewTokenService("test-secret", time.Hour),
		redisstore.NewMemoryRevokedTokens(),
		zap.NewNop(),
	)
}

func TestRegisterLoginMeLogout(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	token, user, err := svc.Register(ctx, "operator", "s3cret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if token == "" || user.ID == 0 || user.Role != "user" {
		t.Fatalf("register result: %q %+v", token, user)
	}

	if _, _, err := svc.Register(ctx, "operator", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "operator", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}

	loginToken, _, err := svc.Login(ctx, "operator", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	me, err := svc.Me(ctx, loginToken)
	if err != nil || me.Username != "operator" {
		t.Fatalf("me = %+v (%v)", me, err)
	}

	if err := svc.Logout(ctx, loginToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Me(ctx, loginToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("me after logout: %v", err)
	}
	if _, err := svc.Me(ctx, token); err != nil {
		t.Fatalf("other session revoked: %v", err)
	}
}

func TestRegisterRequiresFields(t *testing.T) {
	svc := newAuthService()
	if _, _, err := svc.Register(context.Background(), "", "x"); !IsValidation(err) {
		t.Fatalf("missing username: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "x", ""); !IsValidation(err) {
		t.Fatalf("missing password: %v", err)
	}
}

func TestTokenServiceRejectsExpiredAndForeignTokens(t *testing.T) {
	tokens := NewTokenService("secret", time.Minute)
	token, err := tokens.GenerateToken(1, "op", "user")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := NewTokenService("other", time.Minute).ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := tokens.ValidateToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}
