package agent

import (
	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/models"
)

// AccountEntry is one line of the account listing.
type AccountEntry struct {
	Current    bool   `yaml:"current"`
	URN        string `yaml:"urn"`
	SignID     string `yaml:"signId,omitempty"`
	SignMethod string `yaml:"signMethod"`
	Devices    int    `yaml:"devices"`
}

func (a *Agent) ListAccounts() ([]AccountEntry, error) {
	config, accounts, err := a.repo.Load()
	if err != nil {
		return nil, types.AccountError(types.AgentOperationDatabaseRead, err)
	}

	current := ""
	if config != nil {
		current = config.CurrentUser
	}
	entries := make([]AccountEntry, 0, len(accounts))
	for _, acc := range accounts {
		entries = append(entries, AccountEntry{
			Current:    acc.URN == current,
			URN:        acc.URN,
			SignID:     acc.SignID,
			SignMethod: acc.SignMethod,
			Devices:    len(acc.Devices),
		})
	}
	return entries, nil
}

// UseAccount makes urn the account flows act for.
func (a *Agent) UseAccount(urn string) error {
	if err := a.repo.SetCurrentAccount(urn); err != nil {
		return types.AccountError(types.AgentOperationSelectAccount, err)
	}
	a.log.Infow("Current account changed", "urn", urn)
	return nil
}

func (a *Agent) DeleteAccount(urn string) error {
	if err := a.repo.DeleteAccount(urn); err != nil {
		return types.AccountError(types.AgentOperationDatabaseDelete, err)
	}
	a.log.Infow("Account deleted", "urn", urn)
	return nil
}

// ListDevices returns the devices activated for the current account.
func (a *Agent) ListDevices() (*models.Account, []*models.Device, error) {
	config, accounts, err := a.repo.Load()
	if err != nil {
		return nil, nil, types.AccountError(types.AgentOperationDatabaseRead, err)
	}
	if config == nil || config.CurrentUser == "" {
		return nil, nil, types.AccountError(types.AgentOperationSelectAccount, ErrNoCurrentAccount)
	}
	account := findAccount(accounts, config.CurrentUser)
	if account == nil {
		return nil, nil, types.AccountError(types.AgentOperationSelectAccount, ErrNoCurrentAccount)
	}
	return account, account.Devices, nil
}
