package fakeuserrepo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jrsteele09/voter-registration/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// Operation names a repo method for error injection and hooks.
type Operation string

const (
	OpGetByID         Operation = "GetByID"
	OpGetByEmail      Operation = "GetByEmail"
	OpCreate          Operation = "Create"
	OpUpdateUsername  Operation = "UpdateUsername"
	OpGetRegistration Operation = "GetRegistration"
)

// FakeUserRepo is an in-memory profile store enforcing unique IDs and emails.
type FakeUserRepo struct {
	users         map[string]*users.User
	emailIds      map[string]string // email to user id
	registrations map[string]*users.Registration
	failures      map[Operation][]error
	hooks         map[Operation]func(id string)
	calls         map[Operation]int
	lock          sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:         make(map[string]*users.User),
		emailIds:      make(map[string]string),
		registrations: make(map[string]*users.Registration),
		failures:      make(map[Operation][]error),
		hooks:         make(map[Operation]func(id string)),
		calls:         make(map[Operation]int),
	}
}

// FailNext queues err to be returned by the next call to op.
func (ur *FakeUserRepo) FailNext(op Operation, err error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.failures[op] = append(ur.failures[op], err)
}

// OnCall registers fn to run at the start of every call to op, outside the lock.
func (ur *FakeUserRepo) OnCall(op Operation, fn func(id string)) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.hooks[op] = fn
}

// Calls returns how many times op was invoked.
func (ur *FakeUserRepo) Calls(op Operation) int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.calls[op]
}

// Count returns the number of stored profiles.
func (ur *FakeUserRepo) Count() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}

// Put stores a profile directly, bypassing uniqueness checks.
func (ur *FakeUserRepo) Put(user *users.User) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	u := *user
	ur.users[u.ID] = &u
	ur.emailIds[strings.ToLower(u.Email)] = u.ID
}

// PutRegistration stores an applicant record for userID.
func (ur *FakeUserRepo) PutRegistration(reg *users.Registration) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	r := *reg
	ur.registrations[r.UserID] = &r
}

func (ur *FakeUserRepo) begin(op Operation, id string) error {
	ur.lock.Lock()
	ur.calls[op]++
	hook := ur.hooks[op]
	var err error
	if queued := ur.failures[op]; len(queued) > 0 {
		err = queued[0]
		ur.failures[op] = queued[1:]
	}
	ur.lock.Unlock()

	if hook != nil {
		hook(id)
	}
	return err
}

func (ur *FakeUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	if err := ur.begin(OpGetByID, id); err != nil {
		return nil, err
	}
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, users.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (ur *FakeUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if err := ur.begin(OpGetByEmail, email); err != nil {
		return nil, err
	}
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("email %s: %w", email, users.ErrNotFound)
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) Create(ctx context.Context, user *users.User) error {
	if err := ur.begin(OpCreate, user.ID); err != nil {
		return err
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[user.ID]; ok {
		return fmt.Errorf("user %s: %w", user.ID, users.ErrDuplicate)
	}
	if _, ok := ur.emailIds[strings.ToLower(user.Email)]; ok {
		return fmt.Errorf("email %s: %w", user.Email, users.ErrDuplicate)
	}
	u := *user
	ur.users[u.ID] = &u
	ur.emailIds[strings.ToLower(u.Email)] = u.ID
	return nil
}

func (ur *FakeUserRepo) UpdateUsername(ctx context.Context, id, username string) error {
	if err := ur.begin(OpUpdateUsername, id); err != nil {
		return err
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, users.ErrNotFound)
	}
	u.Username = username
	return nil
}

func (ur *FakeUserRepo) GetRegistration(ctx context.Context, userID string) (*users.Registration, error) {
	if err := ur.begin(OpGetRegistration, userID); err != nil {
		return nil, err
	}
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	reg, ok := ur.registrations[userID]
	if !ok {
		return nil, nil
	}
	copied := *reg
	return &copied, nil
}
