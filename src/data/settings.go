package data

import (
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingContractAddress holds the operator-overridden legacy proposal
// contract address.
const SettingContractAddress = "proposal_contract_address"

type Setting struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:64;uniqueIndex;not null"`
	Value  string `gorm:"type:text;not null"`
	Active uint8  `gorm:"not null;default:1"`
}

var (
	settingsCache = map[string]string{}
	settingsMu    sync.RWMutex
)

// LoadSettings loads all active settings from the database into cache
func LoadSettings(db *gorm.DB) error {
	var settings []Setting
	if err := db.Where("active = ?", 1).Find(&settings).Error; err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsCache = make(map[string]string, len(settings))
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}

	return nil
}

// GetSetting retrieves a setting value from cache (call LoadSettings first)
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}

func cacheSetting(name, value string) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settingsCache[name] = value
}

// SetSetting upserts a setting and refreshes the cache.
func SetSetting(db *gorm.DB, name, value string) error {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "active": 1}),
	}).Create(&Setting{Name: name, Value: value, Active: 1}).Error
	if err != nil {
		return err
	}
	cacheSetting(name, value)
	return nil
}

// SettingStore persists one named setting.
type SettingStore struct {
	db   *gorm.DB
	name string
}

func NewSettingStore(db *gorm.DB, name string) SettingStore {
	return SettingStore{db: db, name: name}
}

func (s SettingStore) Get() string { return GetSetting(s.name) }

func (s SettingStore) Set(value string) error {
	if s.db == nil {
		cacheSetting(s.name, value)
		return nil
	}
	return SetSetting(s.db, s.name, value)
}
