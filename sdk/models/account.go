package models

import (
	"errors"
	"fmt"

	"github.com/libreadept/adl/shared-lib/crypto"
)

const (
	SignMethodAnonymous = "anonymous"
	SignMethodAdobeID   = "AdobeID"
)

var ErrNoLocalDevice = errors.New("account has no local device")

// KeyPair holds base64 DER key halves. Private is AES-wrapped under the local
// device key.
type KeyPair struct {
	Private string `json:"private" yaml:"-"`
	Public  string `json:"public" yaml:"public"`
}

// Account is an ADEPT identity bound to one or more devices.
type Account struct {
	URN                        string    `json:"urn" yaml:"urn" validate:"required"`
	SignMethod                 string    `json:"signMethod" yaml:"signMethod" validate:"oneof=anonymous AdobeID"`
	SignID                     string    `json:"signId,omitempty" yaml:"signId,omitempty"`
	AuthKey                    KeyPair   `json:"authKey" yaml:"-"`
	LicenseKey                 KeyPair   `json:"licenseKey" yaml:"-"`
	PKCS12                     string    `json:"pkcs12" yaml:"-"`
	EncryptedPrivateLicenseKey string    `json:"encryptedPrivateLicenseKey" yaml:"-"`
	LicenseCertificate         string    `json:"licenseCertificate" yaml:"-"`
	Devices                    []*Device `json:"devices" yaml:"devices"`
}

// Device returns the device called name, or nil.
func (a *Account) Device(name string) *Device {
	for _, d := range a.Devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (a *Account) LocalDevice() *Device {
	return a.Device(LocalDeviceName)
}

// PrivateLicenseKey unwraps the server issued license key with the local
// device key and returns it as DER.
func (a *Account) PrivateLicenseKey() ([]byte, error) {
	local := a.LocalDevice()
	if local == nil {
		return nil, ErrNoLocalDevice
	}
	key, err := crypto.AESUnwrap(a.EncryptedPrivateLicenseKey, local.DeviceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap license key for %s: %w", a.URN, err)
	}
	return key, nil
}
