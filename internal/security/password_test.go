package security

import (
	"strings"
	"testing"
)

var fastParams = Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPasswordWithParams("Sup3rSecret", fastParams)
	if err != nil {
		t.Fatalf("HashPasswordWithParams() error = %v", err)
	}
	if !strings.HasPrefix(string(hash), "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := VerifyPassword("Sup3rSecret", hash)
	if err != nil || !ok {
		t.Fatalf("VerifyPassword() = %v, %v; want true, nil", ok, err)
	}

	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("VerifyPassword(wrong) = %v, %v; want false, nil", ok, err)
	}
}

func TestHashPassword_SaltsEachHash(t *testing.T) {
	a, _ := HashPasswordWithParams("same", fastParams)
	b, _ := HashPasswordWithParams("same", fastParams)
	if string(a) == string(b) {
		t.Fatal("expected different hashes for the same password")
	}
}

func TestComparePassword_NeverMatchesMissingOrMalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"garbage", []byte("not-a-hash")},
		{"bcrypt", []byte("$2a$10$abcdefghijklmnopqrstuv")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ComparePassword("anything", tt.hash) {
				t.Error("ComparePassword() = true, want false")
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		valid    bool
		reasons  int
	}{
		{"strong", "Abcdefg1", true, 0},
		{"too short", "Ab1", false, 1},
		{"no upper", "abcdefg1", false, 1},
		{"no lower", "ABCDEFG1", false, 1},
		{"no digit", "Abcdefgh", false, 1},
		{"empty", "", false, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePassword(tt.password, policy)
			if got.IsValid != tt.valid {
				t.Errorf("IsValid = %v, want %v (reasons %v)", got.IsValid, tt.valid, got.Reasons)
			}
			if len(got.Reasons) != tt.reasons {
				t.Errorf("len(Reasons) = %d, want %d (%v)", len(got.Reasons), tt.reasons, got.Reasons)
			}
		})
	}
}

func TestValidatePassword_Special(t *testing.T) {
	policy := DefaultPasswordPolicy()
	policy.RequireSpecial = true

	if ValidatePassword("Abcdefg1", policy).IsValid {
		t.Error("expected missing special character to fail")
	}
	if !ValidatePassword("Abcdefg1!", policy).IsValid {
		t.Error("expected password with special character to pass")
	}
}
