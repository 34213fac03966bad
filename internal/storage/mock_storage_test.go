package storage_test

import (
	"brandlink/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindOrCreateUser(email, displayName, role string) (*models.User, error) {
	args := m.Called(email, displayName, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveRoomRecord(rec *models.RoomRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockStorage) LoadRoomRecords() ([]models.RoomRecord, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomRecord), args.Error(1)
}

func (m *MockStorage) RoomsForUser(userID string) ([]models.RoomRecord, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RoomRecord), args.Error(1)
}

func (m *MockStorage) UpsertArchivedMessage(msg *models.ArchivedMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) DeleteArchivedMessage(roomKey, messageID string) error {
	args := m.Called(roomKey, messageID)
	return args.Error(0)
}

func (m *MockStorage) LoadMessages(roomKey string, limit int) ([]models.ArchivedMessage, error) {
	args := m.Called(roomKey, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ArchivedMessage), args.Error(1)
}

func (m *MockStorage) CountUnread(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}
