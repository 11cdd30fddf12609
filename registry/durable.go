package registry

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/topichub/models"
)

// SubscriptionStore is the durable backing for (username, topic) pairs.
type SubscriptionStore interface {
	Save(username, topic string) error
	Delete(username, topic string) error
	All() ([]models.Subscription, error)
}

// GormSubscriptionStore persists subscriptions in MySQL so they survive a
// process restart.
type GormSubscriptionStore struct {
	db *gorm.DB
}

// NewGormSubscriptionStore wraps an initialized gorm DB.
func NewGormSubscriptionStore(db *gorm.DB) *GormSubscriptionStore {
	return &GormSubscriptionStore{db: db}
}

func (s *GormSubscriptionStore) Save(username, topic string) error {
	sub := models.Subscription{Username: username, Topic: topic}
	// The unique (username, topic) index makes repeated saves a no-op.
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&sub).Error
}

func (s *GormSubscriptionStore) Delete(username, topic string) error {
	return s.db.Where("username = ? AND topic = ?", username, topic).
		Delete(&models.Subscription{}).Error
}

func (s *GormSubscriptionStore) All() ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := s.db.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
