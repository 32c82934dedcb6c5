// Package database keeps accounts, devices and discovery state in a JSON
// document under the agent's data directory.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/models"
)

const FileName = "adl.database.json"

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

type Database struct {
	config   *models.Config
	accounts []*models.Account
	mu       sync.RWMutex

	validator *validator.Validate
	log       *zap.SugaredLogger

	// for persistence
	dataDir string
}

type dump struct {
	Config   *models.Config    `json:"config,omitempty"`
	Accounts []*models.Account `json:"accounts"`
}

// NewDatabase opens the store in dataDir. A missing file is an empty store.
func NewDatabase(dataDir string, log *zap.SugaredLogger) (*Database, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db := &Database{
		dataDir:   dataDir,
		validator: validator.New(),
		log:       log,
	}
	if err := db.load(); err != nil {
		return nil, types.DatabaseError(types.AgentOperationDatabaseRead, err)
	}
	return db, nil
}

// Path is the location of the JSON document.
func (db *Database) Path() string {
	return filepath.Join(db.dataDir, FileName)
}

// Load returns copies of the stored state.
func (db *Database) Load() (*models.Config, []*models.Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var config *models.Config
	if db.config != nil {
		c := *db.config
		config = &c
	}
	accounts := make([]*models.Account, 0, len(db.accounts))
	for _, a := range db.accounts {
		accounts = append(accounts, cloneAccount(a))
	}
	return config, accounts, nil
}

func (db *Database) AddAccount(account *models.Account) error {
	if err := db.validator.Struct(account); err != nil {
		return types.DatabaseError(types.AgentOperationDatabaseWrite, fmt.Errorf("invalid account: %w", err))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.find(account.URN) != nil {
		return types.DatabaseError(types.AgentOperationDatabaseWrite, fmt.Errorf("%w: %s", ErrAccountExists, account.URN))
	}
	db.accounts = append(db.accounts, cloneAccount(account))
	db.log.Infow("account added", "urn", account.URN, "devices", len(account.Devices))
	return db.save(types.AgentOperationDatabaseWrite)
}

// DeleteAccount removes urn and unsets it as current account.
func (db *Database) DeleteAccount(urn string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	idx := -1
	for i, a := range db.accounts {
		if a.URN == urn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.DatabaseError(types.AgentOperationDatabaseDelete, fmt.Errorf("%w: %s", ErrAccountNotFound, urn))
	}

	db.accounts = append(db.accounts[:idx], db.accounts[idx+1:]...)
	if db.config != nil && db.config.CurrentUser == urn {
		db.config.CurrentUser = ""
	}
	db.log.Infow("account deleted", "urn", urn)
	return db.save(types.AgentOperationDatabaseDelete)
}

func (db *Database) SetCurrentAccount(urn string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.find(urn) == nil {
		return types.DatabaseError(types.AgentOperationDatabaseUpdate, fmt.Errorf("%w: %s", ErrAccountNotFound, urn))
	}
	if db.config == nil {
		db.config = &models.Config{}
	}
	db.config.CurrentUser = urn
	return db.save(types.AgentOperationDatabaseUpdate)
}

// AddDevice attaches device to urn. A device with the same id replaces the
// stored one.
func (db *Database) AddDevice(urn string, device *models.Device) error {
	if err := db.validator.Struct(device); err != nil {
		return types.DatabaseError(types.AgentOperationDatabaseUpdate, fmt.Errorf("invalid device: %w", err))
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	account := db.find(urn)
	if account == nil {
		return types.DatabaseError(types.AgentOperationDatabaseUpdate, fmt.Errorf("%w: %s", ErrAccountNotFound, urn))
	}

	d := *device
	replaced := false
	for i, existing := range account.Devices {
		if d.DeviceID != "" && existing.DeviceID == d.DeviceID {
			account.Devices[i] = &d
			replaced = true
			break
		}
	}
	if !replaced {
		account.Devices = append(account.Devices, &d)
	}
	db.log.Infow("device added", "urn", urn, "device", d.Name, "deviceId", d.DeviceID)
	return db.save(types.AgentOperationDatabaseUpdate)
}

func (db *Database) StoreConfig(config *models.Config) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c := *config
	db.config = &c
	return db.save(types.AgentOperationDatabaseWrite)
}

func (db *Database) find(urn string) *models.Account {
	for _, a := range db.accounts {
		if a.URN == urn {
			return a
		}
	}
	return nil
}

// save writes the store atomically. Callers hold db.mu.
func (db *Database) save(operation types.AgentOperation) error {
	data, err := json.MarshalIndent(dump{Config: db.config, Accounts: db.accounts}, "", "  ")
	if err != nil {
		return types.DatabaseError(operation, fmt.Errorf("failed to encode database: %w", err))
	}

	if err := os.MkdirAll(db.dataDir, 0o700); err != nil {
		return types.DatabaseError(operation, fmt.Errorf("failed to create %s: %w", db.dataDir, err))
	}
	tempFile := db.Path() + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return types.DatabaseError(operation, fmt.Errorf("failed to write database: %w", err))
	}
	if err := os.Rename(tempFile, db.Path()); err != nil { // Atomic
		_ = os.Remove(tempFile)
		return types.DatabaseError(operation, fmt.Errorf("failed to replace database: %w", err))
	}
	return nil
}

func (db *Database) load() error {
	data, err := os.ReadFile(db.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil // File doesn't exist, start fresh
	}
	if err != nil {
		return err
	}

	var d dump
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to decode %s: %w", db.Path(), err)
	}
	db.config = d.Config
	db.accounts = d.Accounts
	return nil
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.Devices = make([]*models.Device, 0, len(a.Devices))
	for _, d := range a.Devices {
		dev := *d
		dev.DeviceKey = append([]byte(nil), d.DeviceKey...)
		c.Devices = append(c.Devices, &dev)
	}
	return &c
}
