package models

const (
	// LocalDeviceName names the device the agent runs on.
	LocalDeviceName = "local"

	DefaultDeviceType = "standalone"
)

// Device is a reading device activated for an account. DeviceKey is never
// sent to a server in clear.
type Device struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	DeviceKey   []byte `json:"deviceKey,omitempty" yaml:"-"`
	DeviceID    string `json:"deviceId,omitempty" yaml:"deviceId,omitempty"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Type        string `json:"type" yaml:"type"`
}

func NewLocalDevice(deviceKey []byte, fingerprint string) *Device {
	return &Device{
		Name:        LocalDeviceName,
		DeviceKey:   deviceKey,
		Fingerprint: fingerprint,
		Type:        DefaultDeviceType,
	}
}
