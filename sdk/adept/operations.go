package adept

import (
	"bytes"
	"encoding/base64"
	"net/http"

	"github.com/beevik/etree"

	"github.com/libreadept/adl/sdk/models"
	sharedhttp "github.com/libreadept/adl/shared-lib/http"
)

// ClientInfo identifies the reading system to the activation server.
type ClientInfo struct {
	OS      string
	Locale  string
	Version string
}

// DefaultClientInfo mimics the desktop reader the service expects.
var DefaultClientInfo = ClientInfo{
	OS:      "Windows Vista",
	Locale:  "en",
	Version: "ADE WIN 9,0,1131,27",
}

// ---------------------------------------------------------------------------

type ActivationServiceInfo struct {
	AuthURL     string
	UserInfoURL string
	Certificate string
}

// ActivationInit discovers the activation service endpoints and certificate.
type ActivationInit struct {
	BaseURL string
}

func (o ActivationInit) Build() ([]byte, error) { return nil, nil }
func (o ActivationInit) Method() string         { return http.MethodGet }
func (o ActivationInit) URL() string {
	return sharedhttp.JoinURL(o.BaseURL, "ActivationServiceInfo")
}

func (o ActivationInit) Parse(reply []byte) (ActivationServiceInfo, error) {
	const op = "ActivationServiceInfo"
	root, err := parseReply(op, reply)
	if err != nil {
		return ActivationServiceInfo{}, err
	}
	if msg, ok := replyError(root); ok {
		return ActivationServiceInfo{}, serverError(op, msg)
	}

	var info ActivationServiceInfo
	if info.AuthURL, err = requiredText(op, root, "authURL"); err != nil {
		return ActivationServiceInfo{}, err
	}
	if info.UserInfoURL, err = requiredText(op, root, "userInfoURL"); err != nil {
		return ActivationServiceInfo{}, err
	}
	if info.Certificate, err = requiredText(op, root, "certificate"); err != nil {
		return ActivationServiceInfo{}, err
	}
	return info, nil
}

// ---------------------------------------------------------------------------

// AuthenticationInit fetches the authentication service certificate.
type AuthenticationInit struct {
	BaseURL string
}

func (o AuthenticationInit) Build() ([]byte, error) { return nil, nil }
func (o AuthenticationInit) Method() string         { return http.MethodGet }
func (o AuthenticationInit) URL() string {
	return sharedhttp.JoinURL(o.BaseURL, "AuthenticationServiceInfo")
}

func (o AuthenticationInit) Parse(reply []byte) (string, error) {
	const op = "AuthenticationServiceInfo"
	root, err := parseReply(op, reply)
	if err != nil {
		return "", err
	}
	if msg, ok := replyError(root); ok {
		return "", serverError(op, msg)
	}
	return requiredText(op, root, "certificate")
}

// ---------------------------------------------------------------------------

type SignInResult struct {
	Success                    bool
	URN                        string
	PKCS12                     string
	EncryptedPrivateLicenseKey string
	LicenseCertificate         string
	// Error holds the server's data attribute when Success is false.
	Error string
}

// SignInDirect registers the account identity. Private key halves must
// already be wrapped under the device key.
type SignInDirect struct {
	BaseURL    string
	SignMethod string
	SignInData []byte
	AuthKey    models.KeyPair
	LicenseKey models.KeyPair
}

func (o SignInDirect) Method() string { return http.MethodPost }
func (o SignInDirect) URL() string    { return sharedhttp.JoinURL(o.BaseURL, "SignInDirect") }

func (o SignInDirect) Build() ([]byte, error) {
	el := newRequest("signIn", "method", o.SignMethod)
	addText(el, "signInData", base64.StdEncoding.EncodeToString(o.SignInData))
	addText(el, "publicAuthKey", o.AuthKey.Public)
	addText(el, "encryptedPrivateAuthKey", o.AuthKey.Private)
	addText(el, "publicLicenseKey", o.LicenseKey.Public)
	addText(el, "encryptedPrivateLicenseKey", o.LicenseKey.Private)
	return serialize(el)
}

func (o SignInDirect) Parse(reply []byte) (SignInResult, error) {
	const op = "SignInDirect"
	root, err := parseReply(op, reply)
	if err != nil {
		return SignInResult{}, err
	}
	if msg, ok := replyError(root); ok {
		return SignInResult{Success: false, Error: msg}, nil
	}

	res := SignInResult{Success: true}
	if res.URN, err = requiredText(op, root, "user"); err != nil {
		return SignInResult{}, err
	}
	if res.PKCS12, err = requiredText(op, root, "pkcs12"); err != nil {
		return SignInResult{}, err
	}
	if res.EncryptedPrivateLicenseKey, err = requiredText(op, root, "encryptedPrivateLicenseKey"); err != nil {
		return SignInResult{}, err
	}
	if res.LicenseCertificate, err = requiredText(op, root, "licenseCertificate"); err != nil {
		return SignInResult{}, err
	}
	return res, nil
}

// ---------------------------------------------------------------------------

type ActivationResult struct {
	DeviceID string
	// Token is the server's activationToken, kept for reader activation files.
	Token *etree.Element
}

// Activate binds Device to the account User. Parse writes the assigned id
// into Device.
type Activate struct {
	BaseURL    string
	Device     *models.Device
	User       string
	Client     ClientInfo
	Nonce      string
	Expiration string
	Key        []byte
	Signer     Signer
}

func (o Activate) Method() string { return http.MethodPost }
func (o Activate) URL() string    { return sharedhttp.JoinURL(o.BaseURL, "Activate") }

func (o Activate) Build() ([]byte, error) {
	deviceType := o.Device.Type
	if deviceType == "" {
		deviceType = models.DefaultDeviceType
	}

	el := newRequest("activate", "requestType", "initial")
	addText(el, "fingerprint", o.Device.Fingerprint)
	addText(el, "deviceType", deviceType)
	addText(el, "clientOS", o.Client.OS)
	addText(el, "clientLocale", o.Client.Locale)
	addText(el, "clientVersion", o.Client.Version)
	addText(el, "nonce", o.Nonce)
	addText(el, "expiration", o.Expiration)
	addText(el, "user", o.User)

	if _, err := o.Signer.Sign(el, o.Key); err != nil {
		return nil, err
	}
	return serialize(el)
}

func (o Activate) Parse(reply []byte) (ActivationResult, error) {
	const op = "Activate"
	root, err := parseReply(op, reply)
	if err != nil {
		return ActivationResult{}, err
	}
	if msg, ok := replyError(root); ok {
		return ActivationResult{}, serverError(op, msg)
	}

	deviceID, err := requiredText(op, root, "device")
	if err != nil {
		return ActivationResult{}, err
	}
	o.Device.DeviceID = deviceID
	return ActivationResult{DeviceID: deviceID, Token: detach(root)}, nil
}

// ---------------------------------------------------------------------------

// FFAuth authenticates the account against the book operator.
type FFAuth struct {
	OperatorURL               string
	User                      string
	Certificate               []byte
	LicenseCertificate        string
	AuthenticationCertificate string
}

func (o FFAuth) Method() string { return http.MethodPost }
func (o FFAuth) URL() string    { return sharedhttp.JoinURL(o.OperatorURL, "Auth") }

func (o FFAuth) Build() ([]byte, error) {
	el := newRequest("credentials")
	addText(el, "user", o.User)
	addText(el, "certificate", base64.StdEncoding.EncodeToString(o.Certificate))
	addText(el, "licenseCertificate", o.LicenseCertificate)
	addText(el, "authenticationCertificate", o.AuthenticationCertificate)
	return serialize(el)
}

func (o FFAuth) Parse(reply []byte) (bool, error) {
	return replySucceeded("Auth", reply)
}

// ---------------------------------------------------------------------------

// InitLicense initializes the license service for the operator.
type InitLicense struct {
	BaseURL     string
	OperatorURL string
	User        string
	Nonce       string
	Expiration  string
	Key         []byte
	Signer      Signer
}

func (o InitLicense) Method() string { return http.MethodPost }
func (o InitLicense) URL() string    { return sharedhttp.JoinURL(o.BaseURL, "InitLicenseService") }

func (o InitLicense) Build() ([]byte, error) {
	el := newRequest("licenseServiceRequest", "identity", "user")
	addText(el, "operatorURL", o.OperatorURL)
	addText(el, "nonce", o.Nonce)
	addText(el, "expiration", o.Expiration)
	addText(el, "user", o.User)

	if _, err := o.Signer.Sign(el, o.Key); err != nil {
		return nil, err
	}
	return serialize(el)
}

func (o InitLicense) Parse(reply []byte) (bool, error) {
	return replySucceeded("InitLicenseService", reply)
}

// replySucceeded accepts any reply mentioning success unless it carries an
// <error> element.
func replySucceeded(op string, reply []byte) (bool, error) {
	if bytes.Contains(reply, []byte("<error")) {
		if root, err := parseReply(op, reply); err == nil {
			if msg, ok := replyError(root); ok {
				return false, serverError(op, msg)
			}
		}
	}
	return bytes.Contains(reply, []byte("success")), nil
}

// ---------------------------------------------------------------------------

type FulfillmentResult struct {
	Title        string
	URL          string
	LicenseToken *etree.Element
}

// Fulfillment exchanges an ACSM token for the book location and license.
type Fulfillment struct {
	OperatorURL string
	User        string
	Device      *models.Device
	Token       *etree.Element
	Key         []byte
	Signer      Signer
}

func (o Fulfillment) Method() string { return http.MethodPost }
func (o Fulfillment) URL() string    { return sharedhttp.JoinURL(o.OperatorURL, "Fulfill") }

// Element returns the signed request element.
func (o Fulfillment) Element() (*etree.Element, error) {
	el := newRequest("fulfill")
	addText(el, "user", o.User)
	if o.Device != nil && o.Device.DeviceID != "" {
		addText(el, "device", o.Device.DeviceID)
		addText(el, "deviceType", o.Device.Type)
	}
	if o.Token != nil {
		el.AddChild(embed(o.Token, Namespace))
	}

	if _, err := o.Signer.Sign(el, o.Key); err != nil {
		return nil, err
	}
	return el, nil
}

func (o Fulfillment) Build() ([]byte, error) {
	el, err := o.Element()
	if err != nil {
		return nil, err
	}
	return serialize(el)
}

func (o Fulfillment) Parse(reply []byte) (FulfillmentResult, error) {
	const op = "Fulfill"
	root, err := parseReply(op, reply)
	if err != nil {
		return FulfillmentResult{}, err
	}
	if msg, ok := replyError(root); ok {
		return FulfillmentResult{}, serverError(op, msg)
	}

	item := childPath(root, "fulfillmentResult", "resourceItemInfo")
	if item == nil {
		return FulfillmentResult{}, parseError(op, "missing <resourceItemInfo>")
	}
	token := child(item, Namespace, "licenseToken")
	if token == nil {
		return FulfillmentResult{}, parseError(op, "missing <licenseToken>")
	}
	src, err := requiredText(op, item, "src")
	if err != nil {
		return FulfillmentResult{}, err
	}
	title := child(child(item, Namespace, "metadata"), DublinCoreNamespace, "title")
	if title == nil {
		return FulfillmentResult{}, parseError(op, "missing <dc:title>")
	}

	return FulfillmentResult{
		Title:        title.Text(),
		URL:          src,
		LicenseToken: detach(token),
	}, nil
}
