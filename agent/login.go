package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/models"
	"github.com/libreadept/adl/shared-lib/crypto"
)

// DeviceKeySize is the length of the random key protecting an account's
// private keys on this host.
const DeviceKeySize = 16

var ErrCredentialTooLong = errors.New("credential longer than 255 bytes")

// Credentials selects the sign-in method. Empty credentials sign in
// anonymously.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) SignMethod() string {
	if c.Username == "" && c.Password == "" {
		return models.SignMethodAnonymous
	}
	return models.SignMethodAdobeID
}

// BuildAuthPayload encodes the sign-in data: the device key followed by the
// length-prefixed UTF-8 username and password, each a single 0 when absent.
func BuildAuthPayload(deviceKey []byte, username, password string) ([]byte, error) {
	payload := append([]byte(nil), deviceKey...)
	for _, field := range []string{username, password} {
		if len(field) > 255 {
			return nil, ErrCredentialTooLong
		}
		payload = append(payload, byte(len(field)))
		payload = append(payload, field...)
	}
	return payload, nil
}

// LoginFlow creates a local device, signs in a new account and activates
// the device for it. Nothing reaches the repository before the last step.
type LoginFlow struct {
	agent *Agent
	creds Credentials

	config     *models.Config
	discovered bool

	device     *models.Device
	payload    []byte
	signInData []byte
	authKey    models.KeyPair
	licenseKey models.KeyPair
	account    *models.Account
}

func (a *Agent) NewLoginFlow(creds Credentials) *LoginFlow {
	return &LoginFlow{agent: a, creds: creds}
}

// Login runs a LoginFlow and returns the persisted account.
func (a *Agent) Login(ctx context.Context, creds Credentials) (*models.Account, error) {
	return a.NewLoginFlow(creds).Run(ctx)
}

func (f *LoginFlow) Run(ctx context.Context) (*models.Account, error) {
	a := f.agent
	a.log.Infow("Starting login", "signMethod", f.creds.SignMethod())

	config, _, err := a.repo.Load()
	if err != nil {
		return nil, types.DatabaseError(types.AgentOperationDatabaseRead, err)
	}
	f.config = config

	err = a.runSteps(ctx, "login", types.LoginError, []step{
		{"DISCOVER_CONFIG", types.AgentOperationDiscoverConfig, f.discoverConfig},
		{"CREATE_DEVICE", types.AgentOperationCreateDevice, f.createDevice},
		{"BUILD_AUTH_PAYLOAD", types.AgentOperationBuildAuthPayload, f.buildAuthPayload},
		{"ENCRYPT_AUTH_PAYLOAD", types.AgentOperationEncryptAuthPayload, f.encryptAuthPayload},
		{"GENERATE_KEYPAIRS", types.AgentOperationGenerateKeyPairs, f.generateKeyPairs},
		{"WRAP_KEYPAIRS", types.AgentOperationWrapKeyPairs, f.wrapKeyPairs},
		{"SIGN_IN", types.AgentOperationSignIn, f.signIn},
		{"ACTIVATE_DEVICE", types.AgentOperationActivateDevice, f.activateDevice},
		{"PERSIST", types.AgentOperationPersist, f.persist},
	})
	if err != nil {
		return nil, err
	}

	a.log.Infow("Login successful", "urn", f.account.URN, "deviceId", f.device.DeviceID)
	return f.account, nil
}

func (f *LoginFlow) discoverConfig(ctx context.Context) error {
	if f.config.Ready() {
		return nil
	}
	a := f.agent

	info, err := adept.Execute[adept.ActivationServiceInfo](ctx, a.client, adept.ActivationInit{BaseURL: a.client.BaseURL()})
	if err != nil {
		return err
	}
	authCert, err := adept.Execute[string](ctx, a.client, adept.AuthenticationInit{BaseURL: a.client.BaseURL()})
	if err != nil {
		return err
	}

	config := &models.Config{}
	if f.config != nil {
		*config = *f.config
	}
	config.AuthURL = info.AuthURL
	config.UserInfoURL = info.UserInfoURL
	config.ActivationCertificate = info.Certificate
	config.AuthenticationCertificate = authCert
	f.config = config
	f.discovered = true
	a.log.Infow("Activation service discovered", "authURL", info.AuthURL)
	return nil
}

func (f *LoginFlow) createDevice(context.Context) error {
	key := make([]byte, DeviceKeySize)
	if _, err := io.ReadFull(f.agent.random, key); err != nil {
		return fmt.Errorf("failed to generate device key: %w", err)
	}
	fp, err := f.agent.fingerprint()
	if err != nil {
		return fmt.Errorf("failed to compute device fingerprint: %w", err)
	}
	f.device = models.NewLocalDevice(key, fp)
	return nil
}

func (f *LoginFlow) buildAuthPayload(context.Context) error {
	payload, err := BuildAuthPayload(f.device.DeviceKey, f.creds.Username, f.creds.Password)
	if err != nil {
		return err
	}
	f.payload = payload
	return nil
}

func (f *LoginFlow) encryptAuthPayload(context.Context) error {
	data, err := crypto.EncryptForCertificate(f.payload, f.config.AuthenticationCertificate)
	if err != nil {
		return err
	}
	f.signInData = data
	return nil
}

func (f *LoginFlow) generateKeyPairs(context.Context) error {
	var err error
	if f.authKey.Private, f.authKey.Public, err = crypto.GenerateKeyPair(); err != nil {
		return err
	}
	if f.licenseKey.Private, f.licenseKey.Public, err = crypto.GenerateKeyPair(); err != nil {
		return err
	}
	return nil
}

func (f *LoginFlow) wrapKeyPairs(context.Context) error {
	var err error
	if f.authKey, err = wrapKeyPair(f.authKey, f.device.DeviceKey); err != nil {
		return fmt.Errorf("auth key: %w", err)
	}
	if f.licenseKey, err = wrapKeyPair(f.licenseKey, f.device.DeviceKey); err != nil {
		return fmt.Errorf("license key: %w", err)
	}
	return nil
}

func wrapKeyPair(pair models.KeyPair, deviceKey []byte) (models.KeyPair, error) {
	der, err := base64.StdEncoding.DecodeString(pair.Private)
	if err != nil {
		return models.KeyPair{}, err
	}
	wrapped, err := crypto.AESWrap(der, deviceKey)
	if err != nil {
		return models.KeyPair{}, err
	}
	return models.KeyPair{Private: wrapped, Public: pair.Public}, nil
}

func (f *LoginFlow) signIn(ctx context.Context) error {
	a := f.agent
	res, err := adept.Execute[adept.SignInResult](ctx, a.client, adept.SignInDirect{
		BaseURL:    a.client.BaseURL(),
		SignMethod: f.creds.SignMethod(),
		SignInData: f.signInData,
		AuthKey:    f.authKey,
		LicenseKey: f.licenseKey,
	})
	if err != nil {
		return err
	}
	if !res.Success {
		return &adept.ProtocolError{Kind: adept.KindProtocol, Operation: "SignInDirect", Message: res.Error}
	}

	f.account = &models.Account{
		URN:                        res.URN,
		SignMethod:                 f.creds.SignMethod(),
		SignID:                     f.creds.Username,
		AuthKey:                    f.authKey,
		LicenseKey:                 f.licenseKey,
		PKCS12:                     res.PKCS12,
		EncryptedPrivateLicenseKey: res.EncryptedPrivateLicenseKey,
		LicenseCertificate:         res.LicenseCertificate,
		Devices:                    []*models.Device{f.device},
	}
	a.log.Infow("Signed in", "urn", res.URN)
	return nil
}

func (f *LoginFlow) activateDevice(ctx context.Context) error {
	a := f.agent
	key, err := crypto.ExtractPrivateKey(f.account.PKCS12, f.device.DeviceKey)
	if err != nil {
		return err
	}
	n, expiration, err := a.signedStamp()
	if err != nil {
		return err
	}

	_, err = adept.Execute[adept.ActivationResult](ctx, a.client, adept.Activate{
		BaseURL:    a.client.BaseURL(),
		Device:     f.device,
		User:       f.account.URN,
		Client:     a.config.Client.Info(),
		Nonce:      n,
		Expiration: expiration,
		Key:        key,
		Signer:     a.signer,
	})
	return err
}

func (f *LoginFlow) persist(context.Context) error {
	repo := f.agent.repo
	if f.discovered {
		if err := repo.StoreConfig(f.config); err != nil {
			return err
		}
	}

	// The account and its local device are stored together: an account
	// without its device key can never open its PKCS#12 container.
	if err := repo.AddAccount(f.account); err != nil {
		return err
	}
	if err := repo.SetCurrentAccount(f.account.URN); err != nil {
		if rerr := repo.DeleteAccount(f.account.URN); rerr != nil {
			f.agent.log.Errorw("Failed to roll back account", "urn", f.account.URN, "error", rerr)
		}
		return err
	}
	return nil
}
