package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedaiku/kedaiku/internal/shared"
)

type mockRepository struct {
	byEmail map[string]*User
	nextID  int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{byEmail: make(map[string]*User), nextID: 1}
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) Create(ctx context.Context, u *User) error {
	if _, exists := m.byEmail[u.Email]; exists {
		return shared.ErrConflict
	}
	u.ID = m.nextID
	m.nextID++
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func TestRegisterHashesPassword(t *testing.T) {
	svc := NewService(newMockRepository())

	user, err := svc.Register(context.Background(), "Budi@Example.com", "rahasia-betul", "Budi", "0812345678")
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", user.Email)
	assert.NotEqual(t, "rahasia-betul", user.PasswordHash)
	assert.True(t, user.IsActive)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, "budi@example.com", "rahasia-betul", "Budi", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "budi@example.com", "lain-lagi-ya", "Budi Kedua", "")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, "budi@example.com", "rahasia-betul", "Budi", "")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "budi@example.com", "rahasia-betul")
	require.NoError(t, err)
	assert.Equal(t, "budi@example.com", user.Email)

	// Email matching is case and whitespace insensitive.
	_, err = svc.Authenticate(ctx, "  Budi@Example.com ", "rahasia-betul")
	require.NoError(t, err)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, "budi@example.com", "rahasia-betul", "Budi", "")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "budi@example.com", "salah-semua")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Authenticate(context.Background(), "tamu@example.com", "apa-saja-deh")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "budi@example.com", "rahasia-betul", "Budi", "")
	require.NoError(t, err)
	repo.byEmail[user.Email].IsActive = false

	_, err = svc.Authenticate(ctx, "budi@example.com", "rahasia-betul")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
