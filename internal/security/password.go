package security

import "golang.org/x/crypto/bcrypt"

// PasswordHasher abstracts the adaptive hash so services can be tested with
// a fake that records dummy-compare calls.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
	// DummyCompare burns a comparison of the same cost as Compare against a
	// fixed invalid hash. Called on unknown-username paths so the wall-clock
	// difference between "no such user" and "wrong password" stays small.
	DummyCompare(password string)
}

type BcryptHasher struct {
	cost      int
	dummyHash string
}

func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// The dummy hash is minted at the configured cost so DummyCompare does
	// real work, not a cheap early exit.
	dummy, err := bcrypt.GenerateFromPassword([]byte("fleetway-timing-floor"), cost)
	if err != nil {
		return nil, err
	}
	return &BcryptHasher{cost: cost, dummyHash: string(dummy)}, nil
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (h *BcryptHasher) DummyCompare(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(h.dummyHash), []byte(password))
}
