package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("HashPassword() returned the plaintext")
	}

	if err := VerifyPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("VerifyPassword() rejected the correct password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong password"); err != ErrPasswordMismatch {
		t.Errorf("VerifyPassword() error = %v, want ErrPasswordMismatch", err)
	}
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrPasswordTooShort {
		t.Errorf("HashPassword() error = %v, want ErrPasswordTooShort", err)
	}
}

func TestHashPasswordProducesUniqueHashes(t *testing.T) {
	first, err := HashPassword("same input here")
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashPassword("same input here")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("two hashes of the same password are identical")
	}
}
