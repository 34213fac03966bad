package storage

import (
	"errors"
	"log"

	"brandlink/backend/internal/models"

	"gorm.io/gorm"
)

// Storage is the durable side of the system: the marketplace user directory
// and the archive of rooms and messages mirrored from the realtime store.
type Storage interface {
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	FindOrCreateUser(email, displayName, role string) (*models.User, error)

	SaveRoomRecord(rec *models.RoomRecord) error
	LoadRoomRecords() ([]models.RoomRecord, error)
	RoomsForUser(userID string) ([]models.RoomRecord, error)

	UpsertArchivedMessage(msg *models.ArchivedMessage) error
	DeleteArchivedMessage(roomKey, messageID string) error
	LoadMessages(roomKey string, limit int) ([]models.ArchivedMessage, error)
	CountUnread(userID string) (int64, error)
}

// Service implements Storage over PostgreSQL.
type Service struct {
	DB *gorm.DB
}

// NewService builds the storage service.
func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindOrCreateUser looks a user up by email, creating the record on first
// contact. DisplayName and role are only applied to new records.
func (s *Service) FindOrCreateUser(email, displayName, role string) (*models.User, error) {
	var user models.User
	// Attrs, not conditions: the lookup must match on email alone, or a
	// returning user with a changed display name would miss the find and the
	// insert would trip the unique index on email.
	result := s.DB.
		Where("email = ?", email).
		Attrs(models.User{Email: email, DisplayName: displayName, Role: role}).
		FirstOrCreate(&user)
	if result.Error != nil {
		log.Printf("ERROR: Failed to find or create user %s: %v", email, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: New user %s saved to directory (id: %s).", email, user.ID)
	}
	return &user, nil
}

func (s *Service) SaveRoomRecord(rec *models.RoomRecord) error {
	return s.DB.Save(rec).Error
}

func (s *Service) LoadRoomRecords() ([]models.RoomRecord, error) {
	var recs []models.RoomRecord
	if err := s.DB.Order("updated_at_ms asc").Find(&recs).Error; err != nil {
		log.Printf("ERROR: Failed to load room records: %v", err)
		return nil, err
	}
	return recs, nil
}

// RoomsForUser returns the rooms userID participates in, most recently
// active first.
func (s *Service) RoomsForUser(userID string) ([]models.RoomRecord, error) {
	var recs []models.RoomRecord
	err := s.DB.
		Where("participant_a_id = ? OR participant_b_id = ?", userID, userID).
		Order("last_message_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// UpsertArchivedMessage creates the row on first sight of a message id and
// otherwise refreshes the mutable fields (the read flag).
func (s *Service) UpsertArchivedMessage(msg *models.ArchivedMessage) error {
	var existing models.ArchivedMessage
	err := s.DB.Where("message_id = ?", msg.MessageID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(msg).Error
	}
	if err != nil {
		return err
	}
	existing.Read = msg.Read
	existing.Body = msg.Body
	return s.DB.Save(&existing).Error
}

func (s *Service) DeleteArchivedMessage(roomKey, messageID string) error {
	return s.DB.
		Where("room_key = ? AND message_id = ?", roomKey, messageID).
		Delete(&models.ArchivedMessage{}).Error
}

// LoadMessages returns the most recent limit messages of a room in ascending
// send order. limit <= 0 loads the whole room.
func (s *Service) LoadMessages(roomKey string, limit int) ([]models.ArchivedMessage, error) {
	q := s.DB.Where("room_key = ?", roomKey).Order("sent_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.ArchivedMessage
	if err := q.Find(&msgs).Error; err != nil {
		log.Printf("ERROR: Failed to load messages for room %s: %v", roomKey, err)
		return nil, err
	}
	// Fetched newest-first to apply the limit; flip to ascending for callers.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountUnread sums archived messages addressed to userID that are still
// unread, across all rooms the user participates in.
func (s *Service) CountUnread(userID string) (int64, error) {
	rooms := s.DB.Model(&models.RoomRecord{}).
		Select("room_key").
		Where("participant_a_id = ? OR participant_b_id = ?", userID, userID)

	var count int64
	err := s.DB.Model(&models.ArchivedMessage{}).
		Where("read = ? AND sender_id <> ?", false, userID).
		Where("room_key IN (?)", rooms).
		Count(&count).Error
	return count, err
}
