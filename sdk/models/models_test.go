package models

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libreadept/adl/shared-lib/crypto"
)

func TestConfigReady(t *testing.T) {
	var nilConfig *Config
	require.False(t, nilConfig.Ready())
	require.False(t, (&Config{ActivationCertificate: "a"}).Ready())
	require.False(t, (&Config{AuthenticationCertificate: "b"}).Ready())
	require.True(t, (&Config{ActivationCertificate: "a", AuthenticationCertificate: "b"}).Ready())
}

func TestAccountDevices(t *testing.T) {
	reader := &Device{Name: "Cybook Gen3", Type: "tethered"}
	local := NewLocalDevice(bytes.Repeat([]byte{1}, 16), "ZnA=")
	acc := &Account{URN: "urn:uuid:1", Devices: []*Device{reader, local}}

	require.Same(t, local, acc.LocalDevice())
	require.Same(t, reader, acc.Device("Cybook Gen3"))
	require.Nil(t, acc.Device("missing"))
	require.Equal(t, DefaultDeviceType, local.Type)
}

func TestPrivateLicenseKey(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 16)
	wrapped, err := crypto.AESWrap([]byte("license key der"), key)
	require.NoError(t, err)

	acc := &Account{
		URN:                        "urn:uuid:1",
		EncryptedPrivateLicenseKey: wrapped,
		Devices:                    []*Device{NewLocalDevice(key, "")},
	}
	got, err := acc.PrivateLicenseKey()
	require.NoError(t, err)
	require.Equal(t, []byte("license key der"), got)

	_, err = (&Account{}).PrivateLicenseKey()
	require.ErrorIs(t, err, ErrNoLocalDevice)
}

func TestDeviceKeyJSON(t *testing.T) {
	d := NewLocalDevice([]byte{0x4e, 0x53, 0xdf, 0xfb}, "fp")
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.Contains(t, string(data), `"deviceKey":"TlPf+w=="`)

	var back Device
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, d.DeviceKey, back.DeviceKey)
}
