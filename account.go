package main

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SCRAMCreds holds the per-user credential material SCRAM-SHA-256
// authentication needs: never the password itself, only what's required to
// verify a client proof and compute a server signature (RFC 5802 §3).
type SCRAMCreds struct {
	Salt       []byte
	Iterations int
	StoredKey  []byte
	ServerKey  []byte
}

// AccountService is the services-side identity store the core consults for
// SASL authentication and certificate-fingerprint login.
type AccountService interface {
	Validate(ctx context.Context, name, pass string) (bool, error)
	LookupByFingerprint(ctx context.Context, fpr string) (string, bool, error)
	PasswordHash(ctx context.Context, name string) (string, bool, error)
	SCRAMCredentials(ctx context.Context, name string) (SCRAMCreds, bool, error)
	UpdateLastSeen(ctx context.Context, name string)
}

type accountRecord struct {
	passwordHash string
	fingerprint  string
	scram        SCRAMCreds
	hasSCRAM     bool
}

// memoryAccountService is a minimal in-memory AccountService, suitable for
// small networks or testing in the absence of a real services package. It
// has no lock and is not safe for concurrent use; Catbox invokes it only
// from the single event loop goroutine.
type memoryAccountService struct {
	accounts map[string]*accountRecord
}

func newMemoryAccountService() *memoryAccountService {
	return &memoryAccountService{accounts: make(map[string]*accountRecord)}
}

// Register adds or replaces an account's password, hashing it with bcrypt.
func (s *memoryAccountService) Register(name, pass string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("unable to hash password: %s", err)
	}
	rec, exists := s.accounts[name]
	if !exists {
		rec = &accountRecord{}
		s.accounts[name] = rec
	}
	rec.passwordHash = string(hash)
	return nil
}

func (s *memoryAccountService) Validate(_ context.Context, name, pass string) (bool, error) {
	rec, exists := s.accounts[name]
	if !exists {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(rec.passwordHash), []byte(pass))
	return err == nil, nil
}

func (s *memoryAccountService) LookupByFingerprint(_ context.Context, fpr string) (string, bool, error) {
	for name, rec := range s.accounts {
		if rec.fingerprint != "" && rec.fingerprint == fpr {
			return name, true, nil
		}
	}
	return "", false, nil
}

func (s *memoryAccountService) PasswordHash(_ context.Context, name string) (string, bool, error) {
	rec, exists := s.accounts[name]
	if !exists {
		return "", false, nil
	}
	return rec.passwordHash, true, nil
}

func (s *memoryAccountService) SCRAMCredentials(_ context.Context, name string) (SCRAMCreds, bool, error) {
	rec, exists := s.accounts[name]
	if !exists || !rec.hasSCRAM {
		return SCRAMCreds{}, false, nil
	}
	return rec.scram, true, nil
}

func (s *memoryAccountService) UpdateLastSeen(_ context.Context, _ string) {
	// No persistence backing this minimal implementation; a real services
	// package would stamp a last-seen column here.
}
