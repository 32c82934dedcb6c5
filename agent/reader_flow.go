package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/libreadept/adl/agent/reader"
	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/models"
	"github.com/libreadept/adl/shared-lib/crypto"
)

var ErrActivatedForOtherUser = errors.New("reader is already activated for another account")

// ReaderRegistration activates a mounted e-reader for the current account
// and writes its activation file.
type ReaderRegistration struct {
	agent *Agent
	mount string

	config  *models.Config
	account *models.Account
	local   *models.Device

	device     *models.Device
	activation adept.ActivationResult
	content    string
}

func (a *Agent) NewReaderRegistration(mount string) *ReaderRegistration {
	return &ReaderRegistration{agent: a, mount: mount}
}

// RegisterReader runs a ReaderRegistration and returns the activated device.
func (a *Agent) RegisterReader(ctx context.Context, mount string) (*models.Device, error) {
	return a.NewReaderRegistration(mount).Run(ctx)
}

func (r *ReaderRegistration) Run(ctx context.Context) (*models.Device, error) {
	a := r.agent
	a.log.Infow("Registering reader", "mount", r.mount)

	var err error
	r.config, r.account, r.local, err = a.currentAccount()
	if err != nil {
		return nil, types.ReaderError(types.AgentOperationSelectAccount, err, false)
	}

	err = a.runSteps(ctx, "reader", types.ReaderError, []step{
		{"READ_DEVICE", types.AgentOperationReadDevice, r.readDevice},
		{"ACTIVATE_DEVICE", types.AgentOperationActivateDevice, r.activate},
		{"BUILD_ACTIVATION", types.AgentOperationWriteDevice, r.buildActivation},
		{"WRITE_ACTIVATION", types.AgentOperationWriteDevice, r.writeActivation},
		{"PERSIST", types.AgentOperationPersist, r.persist},
	})
	if err != nil {
		return nil, err
	}

	a.log.Infow("Reader registered", "name", r.device.Name, "deviceId", r.device.DeviceID)
	return r.device, nil
}

func (r *ReaderRegistration) readDevice(context.Context) error {
	device, err := reader.ReadDeviceFile(r.mount)
	if err != nil {
		return err
	}

	info, err := reader.ReadActivationFile(r.mount)
	switch {
	case errors.Is(err, reader.ErrNotActivated):
	case err != nil:
		return err
	case info.Username != "" && info.Username != r.account.URN:
		return fmt.Errorf("%w: %s", ErrActivatedForOtherUser, info.Username)
	}

	r.device = device
	return nil
}

func (r *ReaderRegistration) activate(ctx context.Context) error {
	a := r.agent
	key, err := crypto.ExtractPrivateKey(r.account.PKCS12, r.local.DeviceKey)
	if err != nil {
		return err
	}
	n, expiration, err := a.signedStamp()
	if err != nil {
		return err
	}

	r.activation, err = adept.Execute[adept.ActivationResult](ctx, a.client, adept.Activate{
		BaseURL:    a.client.BaseURL(),
		Device:     r.device,
		User:       r.account.URN,
		Client:     a.config.Client.Info(),
		Nonce:      n,
		Expiration: expiration,
		Key:        key,
		Signer:     a.signer,
	})
	return err
}

func (r *ReaderRegistration) buildActivation(context.Context) error {
	licenseKey, err := r.account.PrivateLicenseKey()
	if err != nil {
		return err
	}
	r.content, err = reader.BuildActivationFile(r.account, r.activation.Token, r.config, base64.StdEncoding.EncodeToString(licenseKey))
	return err
}

func (r *ReaderRegistration) writeActivation(context.Context) error {
	return reader.WriteActivationFile(r.mount, r.content)
}

func (r *ReaderRegistration) persist(context.Context) error {
	return r.agent.repo.AddDevice(r.account.URN, r.device)
}
