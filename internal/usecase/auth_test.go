package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/LegalDragon/funtime-identity/config"
	"github.com/LegalDragon/funtime-identity/internal/domain"
	"github.com/LegalDragon/funtime-identity/internal/usecase"
)

const testSharedSecret = "inter-service-secret"

type authEnv struct {
	*linkEnv
	uc *usecase.AuthUsecase
}

func newAuthEnv(t *testing.T, sharedSecret string) *authEnv {
	t.Helper()
	link := newLinkEnv(t)
	return &authEnv{
		linkEnv: link,
		uc: usecase.NewAuthUsecase(
			link.uc, link.otpEnv.uc, link.tokens, sharedSecret, discardLogger(),
		),
	}
}

func TestAuthRegisterLogin(t *testing.T) {
	env := newAuthEnv(t, testSharedSecret)
	ctx := context.Background()

	res := env.uc.Register(ctx, "alice@example.com", "s3cret-pw")
	if !res.Success {
		t.Fatalf("register failed: %s", res.Message)
	}
	if res.Token == "" || res.User == nil {
		t.Fatal("expected token and user in result")
	}

	res = env.uc.Login(ctx, "alice@example.com", "s3cret-pw")
	if !res.Success {
		t.Fatalf("login failed: %s", res.Message)
	}

	res = env.uc.Login(ctx, "alice@example.com", "wrong")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, domain.ErrInvalidCredentials) {
		t.Errorf("Err = %v, want ErrInvalidCredentials", res.Err)
	}
	if res.Message != domain.ErrInvalidCredentials.Error() {
		t.Errorf("message = %q, want sentinel text", res.Message)
	}
}

func TestAuthRegister_DuplicateCarriesErr(t *testing.T) {
	env := newAuthEnv(t, testSharedSecret)
	ctx := context.Background()

	if res := env.uc.Register(ctx, "alice@example.com", "pw"); !res.Success {
		t.Fatalf("register failed: %s", res.Message)
	}

	res := env.uc.Register(ctx, "alice@example.com", "pw")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, domain.ErrDuplicateEmail) {
		t.Errorf("Err = %v, want ErrDuplicateEmail", res.Err)
	}
}

func TestAuthOtpFlow(t *testing.T) {
	env := newAuthEnv(t, testSharedSecret)
	ctx := context.Background()

	if res := env.uc.OtpSend(ctx, testPhone); !res.Success {
		t.Fatalf("otp send failed: %s", res.Message)
	}
	code := env.sender.lastCode(testPhone)

	res := env.uc.OtpVerify(ctx, testPhone, code, nil, nil)
	if !res.Success {
		t.Fatalf("otp verify failed: %s", res.Message)
	}
	if res.User == nil || !res.User.IsPhoneVerified {
		t.Error("expected a phone-verified user")
	}

	res = env.uc.OtpVerify(ctx, testPhone, code, nil, nil)
	if res.Success {
		t.Fatal("expected replay failure")
	}
	if !errors.Is(res.Err, domain.ErrCodeAlreadyUsed) {
		t.Errorf("Err = %v, want ErrCodeAlreadyUsed", res.Err)
	}
}

func TestForceAuth_SecretGate(t *testing.T) {
	ctx := context.Background()

	t.Run("placeholder secret fails closed", func(t *testing.T) {
		env := newAuthEnv(t, config.SharedSecretPlaceholder)
		seeded := env.uc.Register(ctx, "alice@example.com", "pw")
		if !seeded.Success {
			t.Fatalf("register failed: %s", seeded.Message)
		}

		res := env.uc.ForceAuth(ctx, seeded.User.ID, config.SharedSecretPlaceholder)
		if res.Success {
			t.Fatal("expected failure")
		}
		if !errors.Is(res.Err, domain.ErrMisconfigured) {
			t.Errorf("Err = %v, want ErrMisconfigured", res.Err)
		}
	})

	t.Run("empty secret fails closed", func(t *testing.T) {
		env := newAuthEnv(t, "")
		res := env.uc.ForceAuth(ctx, 1, "")
		if !errors.Is(res.Err, domain.ErrMisconfigured) {
			t.Errorf("Err = %v, want ErrMisconfigured", res.Err)
		}
	})

	t.Run("wrong secret is unauthorized", func(t *testing.T) {
		env := newAuthEnv(t, testSharedSecret)
		res := env.uc.ForceAuth(ctx, 1, "guess")
		if res.Success {
			t.Fatal("expected failure")
		}
		if !errors.Is(res.Err, domain.ErrUnauthorized) {
			t.Errorf("Err = %v, want ErrUnauthorized", res.Err)
		}
	})

	t.Run("correct secret issues token", func(t *testing.T) {
		env := newAuthEnv(t, testSharedSecret)
		seeded := env.uc.Register(ctx, "alice@example.com", "pw")
		if !seeded.Success {
			t.Fatalf("register failed: %s", seeded.Message)
		}

		res := env.uc.ForceAuth(ctx, seeded.User.ID, testSharedSecret)
		if !res.Success {
			t.Fatalf("force auth failed: %s", res.Message)
		}
		identity, err := env.tokens.Validate(res.Token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if identity.UserID != seeded.User.ID {
			t.Errorf("token for %d, want %d", identity.UserID, seeded.User.ID)
		}
	})
}

func TestExternalLogin_SecretGate(t *testing.T) {
	env := newAuthEnv(t, testSharedSecret)
	ctx := context.Background()
	identity := usecase.ExternalIdentity{Provider: "google", ProviderUserID: "g-123"}

	res := env.uc.ExternalLogin(ctx, identity, "guess")
	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, domain.ErrUnauthorized) {
		t.Errorf("Err = %v, want ErrUnauthorized", res.Err)
	}

	res = env.uc.ExternalLogin(ctx, identity, testSharedSecret)
	if !res.Success {
		t.Fatalf("external login failed: %s", res.Message)
	}
	if res.User == nil {
		t.Fatal("expected a user")
	}

	again := env.uc.ExternalLogin(ctx, identity, testSharedSecret)
	if !again.Success {
		t.Fatalf("second login failed: %s", again.Message)
	}
	if again.User.ID != res.User.ID {
		t.Errorf("second login user %d, want %d", again.User.ID, res.User.ID)
	}
}

func TestAuthValidateToken(t *testing.T) {
	env := newAuthEnv(t, testSharedSecret)
	ctx := context.Background()

	res := env.uc.Register(ctx, "alice@example.com", "pw")
	if !res.Success {
		t.Fatalf("register failed: %s", res.Message)
	}

	v := env.uc.ValidateToken(ctx, res.Token)
	if !v.Valid {
		t.Fatalf("token invalid: %s", v.Message)
	}
	if v.UserID != res.User.ID {
		t.Errorf("user id = %d, want %d", v.UserID, res.User.ID)
	}
	if v.Email == nil || *v.Email != "alice@example.com" {
		t.Errorf("email = %v, want alice@example.com", v.Email)
	}

	v = env.uc.ValidateToken(ctx, "garbage")
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if v.Message == "" {
		t.Error("expected a message")
	}
}

func TestAuthUnlink_StatusErr(t *testing.T) {
	env := newAuthEnv(t, testSharedSecret)
	ctx := context.Background()

	res := env.uc.ExternalLogin(ctx, usecase.ExternalIdentity{
		Provider: "google", ProviderUserID: "g-123",
	}, testSharedSecret)
	if !res.Success {
		t.Fatalf("external login failed: %s", res.Message)
	}

	unlink := env.uc.UnlinkExternal(ctx, res.User.ID, "google")
	if unlink.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(unlink.Err, domain.ErrLastCredential) {
		t.Errorf("Err = %v, want ErrLastCredential", unlink.Err)
	}
}
