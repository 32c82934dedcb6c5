// Package reader reads and writes the ADEPT files of a mounted e-reader.
package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/models"
)

const (
	// Dir holds the ADEPT files on the reader's storage.
	Dir            = ".adobe-digital-editions"
	DeviceFile     = "device.xml"
	ActivationFile = "activation.xml"
)

var (
	ErrNotADevice   = errors.New("no ADEPT device file found")
	ErrNotActivated = errors.New("device has no activation file")
)

// ActivationInfo is what an existing activation file tells about the reader.
type ActivationInfo struct {
	Username          string
	PrivateLicenseKey string
	DeviceID          string
}

func DevicePath(mount string) string {
	return filepath.Join(mount, Dir, DeviceFile)
}

func ActivationPath(mount string) string {
	return filepath.Join(mount, Dir, ActivationFile)
}

// ReadDeviceFile describes the reader mounted at mount.
func ReadDeviceFile(mount string) (*models.Device, error) {
	root, err := readRoot(DevicePath(mount), ErrNotADevice)
	if err != nil {
		return nil, err
	}

	device := &models.Device{
		Name:        childText(root, "deviceName"),
		Type:        childText(root, "deviceType"),
		Fingerprint: childText(root, "fingerprint"),
	}
	if device.Name == "" || device.Fingerprint == "" {
		return nil, fmt.Errorf("%s: missing deviceName or fingerprint", DevicePath(mount))
	}
	if device.Type == "" {
		device.Type = models.DefaultDeviceType
	}
	return device, nil
}

// ReadActivationFile returns ErrNotActivated when the reader was never
// activated.
func ReadActivationFile(mount string) (*ActivationInfo, error) {
	root, err := readRoot(ActivationPath(mount), ErrNotActivated)
	if err != nil {
		return nil, err
	}

	credentials := child(root, "credentials")
	return &ActivationInfo{
		Username:          childText(credentials, "user"),
		PrivateLicenseKey: childText(credentials, "privateLicenseKey"),
		DeviceID:          childText(child(root, "activationToken"), "device"),
	}, nil
}

// WriteActivationFile replaces the reader's activation file with content.
func WriteActivationFile(mount, content string) error {
	dir := filepath.Join(mount, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ActivationFile+".*")
	if err != nil {
		return fmt.Errorf("failed to write activation file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write activation file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write activation file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write activation file: %w", err)
	}
	return os.Rename(tmp.Name(), ActivationPath(mount))
}

// BuildActivationFile renders the activationInfo document a reader needs to
// open books licensed to account. token is the activationToken returned when
// the reader was activated.
func BuildActivationFile(account *models.Account, token *etree.Element, config *models.Config, privateLicenseKey string) (string, error) {
	if token == nil {
		return "", errors.New("missing activation token")
	}

	root := etree.NewElement("activationInfo")
	root.CreateAttr("xmlns", adept.Namespace)

	service := root.CreateElement("activationServiceInfo")
	addText(service, "authURL", config.AuthURL)
	addText(service, "userInfoURL", config.UserInfoURL)
	addText(service, "activationURL", config.AuthURL)
	addText(service, "certificate", config.ActivationCertificate)

	credentials := root.CreateElement("credentials")
	addText(credentials, "user", account.URN)
	addText(credentials, "licenseCertificate", account.LicenseCertificate)
	addText(credentials, "privateLicenseKey", privateLicenseKey)
	addText(credentials, "authenticationCertificate", config.AuthenticationCertificate)
	username := addText(credentials, "username", account.SignID)
	username.CreateAttr("method", account.SignMethod)

	t := token.Copy()
	if a := t.SelectAttr("xmlns"); a != nil && a.Value == adept.Namespace {
		t.RemoveAttr("xmlns")
	}
	root.AddChild(t)

	return adept.Serialize(root)
}

func readRoot(path string, missing error) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", missing, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%s: empty document", path)
	}
	return doc.Root(), nil
}

func child(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag != local {
			continue
		}
		if ns := c.NamespaceURI(); ns == "" || ns == adept.Namespace {
			return c
		}
	}
	return nil
}

func childText(el *etree.Element, local string) string {
	if c := child(el, local); c != nil {
		return c.Text()
	}
	return ""
}

func addText(parent *etree.Element, name, text string) *etree.Element {
	c := parent.CreateElement(name)
	if text != "" {
		c.SetText(text)
	}
	return c
}
