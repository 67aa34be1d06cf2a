// Package scratch provides the scoped key-value store used for transient
// workflow bookkeeping. The store is not authoritative: it only carries
// in-progress creation state between steps and page loads.
package scratch

import (
	"context"
	"errors"
	"sync"
)

// Well-known keys written by the wizard and the orchestrator.
const (
	KeyTempDaoContextID     = "tempDaoContextID"
	KeyTempDaoContextUserID = "tempDaoContextUserID"
	KeyTempDaoAgreementName = "tempDaoAgreementName"
	KeyAgreementContextID   = "agreementContextID"
	KeyAgreementContextUser = "agreementContextUserID"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("not found")

// Store is an explicit key-value scratch interface so the orchestrator and
// wizard stay testable without a real host environment.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Memory is an in-process Store for tests and bridge-embedded hosts that
// supply their own persistence.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
