package directory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/directory"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/testutil/memstore"
)

type fakeVerifier map[string]directory.Assertion

func (f fakeVerifier) Verify(_ context.Context, raw string) (directory.Assertion, error) {
	a, ok := f[raw]
	if !ok {
		return directory.Assertion{}, errors.New("bad token")
	}
	return a, nil
}

func validReg() directory.Registration {
	return directory.Registration{
		Name:        "Ann",
		Email:       "Ann@Foo.EDU",
		CollegeID:   "42",
		CollegeName: "Foo U",
		UserType:    models.Student,
		Subjects:    []string{"Calculus", " "},
	}
}

func TestRegister_PasswordFlow(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := directory.New(st, nil, nil, nil)

	u, err := svc.Register(ctx, validReg(), directory.Credential{Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "ann@foo.edu" || u.Role != "user" || u.Rating == nil || *u.Rating != 5.0 {
		t.Fatalf("defaults not applied: %+v", u)
	}
	if len(u.Subjects) != 1 {
		t.Fatalf("blank subjects must be dropped: %v", u.Subjects)
	}

	got, err := svc.Login(ctx, "ANN@foo.edu", directory.Credential{Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID {
		t.Fatal("login returned another user")
	}

	if _, err := svc.Login(ctx, "ann@foo.edu", directory.Credential{Password: "wrong!!"}); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@foo.edu", directory.Credential{Password: "x"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegister_Failures(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := directory.New(st, nil, nil, nil)
	if _, err := svc.Register(ctx, validReg(), directory.Credential{Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		mod  func(*directory.Registration)
		cred directory.Credential
		code string
	}{
		{"duplicate email", func(*directory.Registration) {}, directory.Credential{Password: "secret2"}, "email_already_in_use"},
		{"weak password", func(r *directory.Registration) { r.Email = "bob@foo.edu" }, directory.Credential{Password: "12345"}, "weak_password"},
		{"non college email", func(r *directory.Registration) { r.Email = "bob@gmail.com" }, directory.Credential{Password: "secret1"}, "college_email_required"},
		{"missing college", func(r *directory.Registration) { r.Email = "bob@foo.edu"; r.CollegeName = "" }, directory.Credential{Password: "secret1"}, "missing_fields"},
		{"no subjects", func(r *directory.Registration) { r.Email = "bob@foo.edu"; r.Subjects = []string{" "} }, directory.Credential{Password: "secret1"}, "missing_fields"},
		{"no credential", func(r *directory.Registration) { r.Email = "bob@foo.edu" }, directory.Credential{}, "missing_fields"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := validReg()
			tc.mod(&reg)
			_, err := svc.Register(ctx, reg, tc.cred)
			if apperr.CodeOf(err) != tc.code {
				t.Fatalf("code: got %q (%v), want %q", apperr.CodeOf(err), err, tc.code)
			}
		})
	}
}

func TestRegister_AcademicDomain(t *testing.T) {
	svc := directory.New(memstore.New(), nil, nil, nil)
	reg := validReg()
	reg.Email = "ravi@iitb.ac.in"
	if _, err := svc.Register(context.Background(), reg, directory.Credential{Password: "secret1"}); err != nil {
		t.Fatalf(".ac. addresses are college addresses: %v", err)
	}
}

func TestRegister_FederatedUsesSubjectAsID(t *testing.T) {
	ctx := context.Background()
	v := fakeVerifier{"tok": {Subject: "google-sub-1", Email: "ann@foo.edu", Name: "Ann"}}
	svc := directory.New(memstore.New(), v, nil, nil)

	u, err := svc.Register(ctx, validReg(), directory.Credential{IDToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "google-sub-1" {
		t.Fatalf("id: %s", u.ID)
	}
	// вход по токену Google без пароля
	if _, err := svc.Login(ctx, "ann@foo.edu", directory.Credential{IDToken: "tok"}); err != nil {
		t.Fatal(err)
	}
	// пароля нет: вход по паролю невозможен
	if _, err := svc.Login(ctx, "ann@foo.edu", directory.Credential{Password: "anything"}); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}

	reg := validReg()
	reg.Email = "other@foo.edu"
	if _, err := svc.Register(ctx, reg, directory.Credential{IDToken: "tok"}); !errors.Is(err, apperr.ErrIdentityMismatched) {
		t.Fatalf("expected identity mismatch, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	a := directory.Assertion{Subject: "s", Email: "ann@foo.edu", Name: "Ann", PictureURL: "https://pic"}

	r := directory.Resolve(nil, a)
	if !r.NewUserRequired() || r.NeedsRegistration.Email != "ann@foo.edu" || r.NeedsRegistration.ProfilePic != "https://pic" {
		t.Fatalf("prefill expected: %+v", r)
	}

	u := &models.User{ID: "u1"}
	r = directory.Resolve(u, a)
	if r.NewUserRequired() || r.Existing != u || r.BackfillPicture != "https://pic" {
		t.Fatalf("backfill expected: %+v", r)
	}

	u.ProfilePic = "https://old"
	if r = directory.Resolve(u, a); r.BackfillPicture != "" {
		t.Fatal("existing picture must be kept")
	}
}

func TestLoginWithFederatedIdentity(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.AddUser(models.User{ID: "u1", Email: "ann@foo.edu", CollegeName: "Foo U"})
	b := realtime.NewMemoryBroker()
	sub, _ := b.Subscribe(ctx, realtime.TopicUsers)
	defer sub.Close()
	svc := directory.New(st, nil, b, nil)

	res, err := svc.LoginWithFederatedIdentity(ctx, "nobody@foo.edu", "Nobody", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.NewUserRequired() {
		t.Fatal("unknown email must require registration")
	}

	res, err = svc.LoginWithFederatedIdentity(ctx, "ANN@foo.edu", "Ann", "https://pic")
	if err != nil {
		t.Fatal(err)
	}
	if res.Existing == nil || res.Existing.ProfilePic != "https://pic" {
		t.Fatalf("picture must be back-filled: %+v", res.Existing)
	}
	stored, _ := st.GetUserByID(ctx, "u1")
	if stored.ProfilePic != "https://pic" {
		t.Fatal("back-fill not persisted")
	}
	if ev := <-sub.C; ev.Kind != "updated" {
		t.Fatalf("users event expected, got %+v", ev)
	}
}

func TestLoginWithFederatedIdentity_BackfillFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.AddUser(models.User{ID: "u1", Email: "ann@foo.edu"})
	st.FailOn("SetProfilePic", errors.New("write failed"))
	svc := directory.New(st, nil, nil, nil)

	res, err := svc.LoginWithFederatedIdentity(ctx, "ann@foo.edu", "Ann", "https://pic")
	if err != nil {
		t.Fatalf("back-fill failure must not fail login: %v", err)
	}
	if res.Existing == nil || res.Existing.ProfilePic != "" {
		t.Fatalf("profile must stay unchanged: %+v", res.Existing)
	}
}

func TestFederatedLogin_RequiresVerifier(t *testing.T) {
	svc := directory.New(memstore.New(), nil, nil, nil)
	if _, err := svc.FederatedLogin(context.Background(), "tok"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	v := fakeVerifier{}
	svc = directory.New(memstore.New(), v, nil, nil)
	if _, err := svc.FederatedLogin(context.Background(), "bad"); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}
