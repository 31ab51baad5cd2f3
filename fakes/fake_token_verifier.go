package fakes

import (
	"fmt"
	"sync"
)

// FakeTokenVerifier accepts the tokens it was seeded with and rejects the
// rest.
type FakeTokenVerifier struct {
	mutex sync.Mutex

	tokens map[string]string
	calls  int
}

func NewFakeTokenVerifier() *FakeTokenVerifier {
	return &FakeTokenVerifier{tokens: map[string]string{}}
}

func (f *FakeTokenVerifier) Accept(token string, userId string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.tokens[token] = userId
}

func (f *FakeTokenVerifier) Verify(token string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls++
	userId, ok := f.tokens[token]
	if !ok {
		return "", fmt.Errorf("unknown token")
	}
	return userId, nil
}

func (f *FakeTokenVerifier) VerifyCallCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.calls
}
