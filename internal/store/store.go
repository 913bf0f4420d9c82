// Package store is the durable-storage collaborator: account records plus
// one batched transaction of entity upserts/deletions per tick. The
// in-memory world remains authoritative; a failed batch is simply retried
// by the engine on the next tick.
package store

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/edsabi/AISubBrawl/internal/sim"
)

// ErrInvalidCredentials is returned by Authenticate on a bad login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUsernameTaken is returned by CreateUser on a duplicate username.
var ErrUsernameTaken = errors.New("username taken")

// User is an account row.
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"uniqueIndex;size:64;not null"`
	PwHash   string `gorm:"size:200;not null"`
	IsAdmin  bool
}

// APIKey maps a bearer token to a user.
type APIKey struct {
	ID     uint   `gorm:"primaryKey"`
	Key    string `gorm:"uniqueIndex;size:64;not null"`
	UserID uint   `gorm:"index;not null"`
}

// SubmarineRow mirrors one submarine's persisted state.
type SubmarineRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	OwnerID     uint   `gorm:"index"`
	X           float64
	Y           float64
	Depth       float64
	Heading     float64
	Pitch       float64
	Speed       float64
	Throttle    float64
	Battery     float64
	Snorkeling  bool
	BlowCharges float64
	Health      float64
	Destroyed   bool
}

// TorpedoRow mirrors one torpedo's persisted state.
type TorpedoRow struct {
	ID         string `gorm:"primaryKey;size:36"`
	OwnerID    uint   `gorm:"index"`
	ParentID   string `gorm:"size:36"`
	X          float64
	Y          float64
	Depth      float64
	Heading    float64
	Speed      float64
	Mode       string `gorm:"size:16"`
	WireLength float64
	Fuel       float64
}

// Store wraps the gorm handle.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the sqlite database at path (":memory:" works) and
// migrates the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}
	if err := db.AutoMigrate(&User{}, &APIKey{}, &SubmarineRow{}, &TorpedoRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// CommitBatch writes one tick's entity set in a single transaction so write
// amplification stays bounded at one commit per tick.
func (s *Store) CommitBatch(batch sim.PersistBatch) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if len(batch.Subs) > 0 {
			rows := make([]SubmarineRow, 0, len(batch.Subs))
			for i := range batch.Subs {
				rows = append(rows, subRow(&batch.Subs[i]))
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(batch.Torpedoes) > 0 {
			rows := make([]TorpedoRow, 0, len(batch.Torpedoes))
			for i := range batch.Torpedoes {
				rows = append(rows, torpedoRow(&batch.Torpedoes[i]))
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(batch.DeletedTorpedoes) > 0 {
			if err := tx.Delete(&TorpedoRow{}, "id IN ?", batch.DeletedTorpedoes).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func subRow(s *sim.Submarine) SubmarineRow {
	return SubmarineRow{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		X:           s.X,
		Y:           s.Y,
		Depth:       s.Depth,
		Heading:     s.Heading,
		Pitch:       s.Pitch,
		Speed:       s.Speed,
		Throttle:    s.Throttle,
		Battery:     s.Battery,
		Snorkeling:  s.Snorkeling,
		BlowCharges: s.BlowCharges,
		Health:      s.Health,
		Destroyed:   s.Destroyed,
	}
}

func torpedoRow(t *sim.Torpedo) TorpedoRow {
	return TorpedoRow{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		ParentID:   t.ParentID,
		X:          t.X,
		Y:          t.Y,
		Depth:      t.Depth,
		Heading:    t.Heading,
		Speed:      t.Speed,
		Mode:       string(t.Mode),
		WireLength: t.WireLength,
		Fuel:       t.Fuel,
	}
}

// CreateUser registers an account and issues its first api key.
func (s *Store) CreateUser(username, password string) (string, error) {
	var existing User
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return "", ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	user := User{Username: username, PwHash: string(hash)}
	if err := s.db.Create(&user).Error; err != nil {
		return "", err
	}
	return s.issueKey(user.ID)
}

// Authenticate verifies a login and issues a fresh api key.
func (s *Store) Authenticate(username, password string) (string, error) {
	var user User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PwHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueKey(user.ID)
}

// UserForKey resolves a bearer token to a user id.
func (s *Store) UserForKey(key string) (uint, bool) {
	var row APIKey
	if err := s.db.Where("key = ?", key).First(&row).Error; err != nil {
		return 0, false
	}
	return row.UserID, true
}

func (s *Store) issueKey(userID uint) (string, error) {
	key := uuid.NewString() + uuid.NewString()[:8]
	if err := s.db.Create(&APIKey{Key: key, UserID: userID}).Error; err != nil {
		return "", err
	}
	return key, nil
}
