package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"chain_sync/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists operator metadata: the market registry and user
// key-value configuration. Synced ledger state itself is never persisted.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.MarketInfo{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "ChainSync", "data", "chain_sync.db"), nil
}

// ======================================================================================
// Market Registry Operations
// ======================================================================================

// UpsertMarket creates or updates a market registry row
func (s *Storage) UpsertMarket(market *domain.MarketInfo) error {
	return s.db.Save(market).Error
}

// GetMarket retrieves a market by address
func (s *Storage) GetMarket(address string) (*domain.MarketInfo, error) {
	var market domain.MarketInfo
	err := s.db.First(&market, "address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &market, err
}

// GetAllMarkets retrieves every registered market
func (s *Storage) GetAllMarkets() ([]domain.MarketInfo, error) {
	var markets []domain.MarketInfo
	err := s.db.Find(&markets).Error
	return markets, err
}

// GetActiveMarkets retrieves the markets currently being watched
func (s *Storage) GetActiveMarkets() ([]domain.MarketInfo, error) {
	var markets []domain.MarketInfo
	err := s.db.Where("is_active = ?", true).Order("name").Find(&markets).Error
	return markets, err
}

// GetFavorites retrieves the markets the user marked as favorites
func (s *Storage) GetFavorites() ([]domain.MarketInfo, error) {
	var markets []domain.MarketInfo
	err := s.db.Where("is_favorite = ?", true).Order("name").Find(&markets).Error
	return markets, err
}

// SetActive flips the active flag of a market registry row
func (s *Storage) SetActive(address string, active bool) error {
	return s.db.Model(&domain.MarketInfo{}).
		Where("address = ?", address).
		Update("is_active", active).Error
}

// ToggleFavorite toggles the favorite status of a market
func (s *Storage) ToggleFavorite(address string) (bool, error) {
	var market domain.MarketInfo
	if err := s.db.First(&market, "address = ?", address).Error; err != nil {
		return false, err
	}

	market.IsFavorite = !market.IsFavorite
	err := s.db.Save(&market).Error
	return market.IsFavorite, err
}

// DeleteMarket deletes a market from the registry
func (s *Storage) DeleteMarket(address string) error {
	return s.db.Where("address = ?", address).Delete(&domain.MarketInfo{}).Error
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}
