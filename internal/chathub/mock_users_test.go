package chathub_test

import (
	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockUserStore) Authenticate(username, password string) (bool, error) {
	args := m.Called(username, password)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) UserExists(username string) (bool, error) {
	args := m.Called(username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) DeleteUser(username string) error {
	args := m.Called(username)
	return args.Error(0)
}
