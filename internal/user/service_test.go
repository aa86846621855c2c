package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepository struct {
	users []*User
}

func (f *fakeRepository) createUser(user *User) error {
	user.ID = "generated-id"
	f.users = append(f.users, user)
	return nil
}

func (f *fakeRepository) userExistsByLoginOrEmail(login, email string) (*User, error) {
	for _, u := range f.users {
		if u.Login == login || u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeRepository) getUserByLoginOrEmail(loginOrEmail string) (*User, error) {
	for _, u := range f.users {
		if u.Login == loginOrEmail || u.Email == loginOrEmail {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeRepository) getUserByID(id string) (*User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func TestRegister_Success(t *testing.T) {
	repo := &fakeRepository{}
	service := NewUserService(repo)

	newUser, err := service.Register("Trader@Example.com", "trader1", "s3cretpass")
	assert.NoError(t, err)
	assert.Equal(t, "generated-id", newUser.ID)
	assert.Equal(t, "trader@example.com", newUser.Email)
	assert.NotEmpty(t, newUser.HashToken)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newUser.PasswordHash), []byte("s3cretpass")))
}

func TestRegister_Validation(t *testing.T) {
	repo := &fakeRepository{}
	service := NewUserService(repo)

	cases := []struct {
		name     string
		email    string
		login    string
		password string
		wantErr  error
	}{
		{"bad email", "not-an-email", "trader1", "s3cretpass", ErrInvalidEmail},
		{"email too long", "averyveryverylongaddress@example.com", "trader1", "s3cretpass", ErrEmailLength},
		{"login too short", "a@b.io", "abc", "s3cretpass", ErrLoginLength},
		{"password too short", "a@b.io", "trader1", "short", ErrPasswordTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Register(tc.email, tc.login, tc.password)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Empty(t, repo.users)
}

func TestRegister_Duplicates(t *testing.T) {
	repo := &fakeRepository{}
	service := NewUserService(repo)

	_, err := service.Register("trader@example.com", "trader1", "s3cretpass")
	assert.NoError(t, err)

	_, err = service.Register("trader@example.com", "trader2", "s3cretpass")
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	_, err = service.Register("other@example.com", "trader1", "s3cretpass")
	assert.ErrorIs(t, err, ErrLoginAlreadyExists)

	assert.Len(t, repo.users, 1)
}
