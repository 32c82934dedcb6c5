package agent

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/models"
	"github.com/libreadept/adl/shared-lib/crypto"
)

const (
	testUserURN    = "urn:uuid:06ff762f-e588-4133-8345-b6580dfecd56"
	testLocalID    = "urn:uuid:a9d8548e-fc74-462a-9551-913ef3b27493"
	testReaderID   = "urn:uuid:5f0e8a2c-3c4b-4e7a-9d55-2f61b7a1c0de"
	testLicenseDER = "license private key"
)

// fakeRepository counts writes so tests can assert nothing was persisted.
type fakeRepository struct {
	mu       sync.Mutex
	config   *models.Config
	accounts []*models.Account

	addAccountCalls  int
	addDeviceCalls   int
	storeConfigCalls int
	setCurrentCalls  int

	addAccountErr error
	setCurrentErr error
}

func (r *fakeRepository) Load() (*models.Config, []*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var config *models.Config
	if r.config != nil {
		c := *r.config
		config = &c
	}
	return config, append([]*models.Account(nil), r.accounts...), nil
}

func (r *fakeRepository) AddAccount(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addAccountCalls++
	if r.addAccountErr != nil {
		return r.addAccountErr
	}
	a := *account
	r.accounts = append(r.accounts, &a)
	return nil
}

func (r *fakeRepository) DeleteAccount(urn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.accounts {
		if a.URN == urn {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown account %s", urn)
}

func (r *fakeRepository) SetCurrentAccount(urn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCurrentCalls++
	if r.setCurrentErr != nil {
		return r.setCurrentErr
	}
	if r.config == nil {
		r.config = &models.Config{}
	}
	r.config.CurrentUser = urn
	return nil
}

func (r *fakeRepository) AddDevice(urn string, device *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addDeviceCalls++
	for _, a := range r.accounts {
		if a.URN == urn {
			d := *device
			a.Devices = append(a.Devices, &d)
			return nil
		}
	}
	return fmt.Errorf("unknown account %s", urn)
}

func (r *fakeRepository) StoreConfig(config *models.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeConfigCalls++
	c := *config
	r.config = &c
	return nil
}

// adeptServer plays both the activation service and a book operator.
type adeptServer struct {
	srv       *httptest.Server
	authKey   *rsa.PrivateKey
	authCert  string
	deviceKey []byte
	pkcs12    string
	book      []byte

	mu          sync.Mutex
	hits        map[string]int
	fail        map[string]bool
	signInError string
	payload     []byte
}

func newADEPTServer(t *testing.T) *adeptServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, crypto.AccountKeyBits)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "authentication service"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	s := &adeptServer{
		authKey:   key,
		authCert:  base64.StdEncoding.EncodeToString(certDER),
		deviceKey: fixtureDeviceKey(t),
		pkcs12:    readFixture(t, "account.p12.b64"),
		book:      buildBook(t),
		hits:      make(map[string]int),
		fail:      make(map[string]bool),
	}
	s.srv = httptest.NewServer(s)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *adeptServer) baseURL() string     { return s.srv.URL + "/adept" }
func (s *adeptServer) operatorURL() string { return s.srv.URL + "/operator" }

func (s *adeptServer) failOn(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[path] = true
}

func (s *adeptServer) setSignInError(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signInError = data
}

// receivedPayload is the decrypted signInData of the last sign-in.
func (s *adeptServer) receivedPayload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

func (s *adeptServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *adeptServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.hits[r.URL.Path]++
	fail := s.fail[r.URL.Path]
	signInError := s.signInError
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Path {
	case "/adept/ActivationServiceInfo":
		fmt.Fprintf(w, `<activationServiceInfo xmlns="%s"><authURL>%s</authURL><userInfoURL>%s/userinfo</userInfoURL><certificate>ACT_CERTIFICATE</certificate></activationServiceInfo>`,
			adept.Namespace, s.baseURL(), s.srv.URL)

	case "/adept/AuthenticationServiceInfo":
		fmt.Fprintf(w, `<authenticationServiceInfo xmlns="%s"><certificate>%s</certificate></authenticationServiceInfo>`, adept.Namespace, s.authCert)

	case "/adept/SignInDirect":
		if signInError != "" {
			fmt.Fprintf(w, `<error xmlns="%s" data="%s"/>`, adept.Namespace, signInError)
			return
		}
		if err := s.recordPayload(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		eplk, err := crypto.AESWrap([]byte(testLicenseDER), s.deviceKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `<credentials xmlns="%s"><user>%s</user><pkcs12>%s</pkcs12><encryptedPrivateLicenseKey>%s</encryptedPrivateLicenseKey><licenseCertificate>LICENSE_CERTIFICATE</licenseCertificate></credentials>`,
			adept.Namespace, testUserURN, s.pkcs12, eplk)

	case "/adept/Activate":
		deviceID := testLocalID
		if bytes.Contains(body, []byte("<deviceType>tethered</deviceType>")) {
			deviceID = testReaderID
		}
		fmt.Fprintf(w, `<activationToken xmlns="%s"><device>%s</device><fingerprint>dG90bw==</fingerprint><deviceType>standalone</deviceType><activationURL>%s</activationURL><user>%s</user><signature>c2ln</signature></activationToken>`,
			adept.Namespace, deviceID, s.baseURL(), testUserURN)

	case "/adept/InitLicenseService", "/operator/Auth":
		fmt.Fprint(w, "<success/>")

	case "/operator/Fulfill":
		fmt.Fprintf(w, `<envelope xmlns="%s"><fulfillmentResult><resourceItemInfo><src>%s/books/book.epub</src><metadata><dc:title xmlns:dc="http://purl.org/dc/elements/1.1/">My great book</dc:title></metadata><licenseToken><user>%s</user></licenseToken></resourceItemInfo></fulfillmentResult></envelope>`,
			adept.Namespace, s.srv.URL, testUserURN)

	case "/books/book.epub":
		_, _ = w.Write(s.book)

	default:
		http.NotFound(w, r)
	}
}

func (s *adeptServer) recordPayload(body []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return err
	}
	data := doc.Root().SelectElement("signInData")
	if data == nil {
		return fmt.Errorf("missing signInData")
	}
	encrypted, err := base64.StdEncoding.DecodeString(data.Text())
	if err != nil {
		return err
	}
	payload, err := rsa.DecryptPKCS1v15(nil, s.authKey, encrypted)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.payload = payload
	s.mu.Unlock()
	return nil
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func fixtureDeviceKey(t *testing.T) []byte {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString("TlPf+z/dETowaQGk0ZP3NA==")
	require.NoError(t, err)
	return key
}

func buildBook(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	mt, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = mt.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	chapter, err := w.Create("OEBPS/chapter1.xhtml")
	require.NoError(t, err)
	_, err = chapter.Write([]byte("<html>encrypted chapter</html>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func testConfig(t *testing.T, s *adeptServer) *types.Config {
	return &types.Config{
		DataDir:              t.TempDir(),
		OutputDir:            t.TempDir(),
		ActivationServiceURL: s.baseURL(),
		LicenseServiceURL:    s.baseURL(),
		Transport:            types.TransportConfig{Timeout: 5 * time.Second},
		Client: types.ClientConfig{
			OS:      adept.DefaultClientInfo.OS,
			Locale:  adept.DefaultClientInfo.Locale,
			Version: adept.DefaultClientInfo.Version,
		},
	}
}

func newTestAgent(t *testing.T, s *adeptServer, repo Repository) *Agent {
	t.Helper()
	a, err := NewAgent(testConfig(t, s), repo, zaptest.NewLogger(t).Sugar(),
		WithRandom(bytes.NewReader(s.deviceKey)),
		WithFingerprint(func() (string, error) { return "dG90bw==", nil }),
		WithClock(func() time.Time { return time.Date(2020, 11, 16, 21, 17, 52, 0, time.UTC) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// activatedRepository holds the state a successful login leaves behind.
func activatedRepository(t *testing.T, s *adeptServer) *fakeRepository {
	t.Helper()
	eplk, err := crypto.AESWrap([]byte(testLicenseDER), s.deviceKey)
	require.NoError(t, err)

	local := models.NewLocalDevice(s.deviceKey, "dG90bw==")
	local.DeviceID = testLocalID
	return &fakeRepository{
		config: &models.Config{
			AuthURL:                   s.baseURL(),
			UserInfoURL:               s.srv.URL + "/userinfo",
			ActivationCertificate:     "ACT_CERTIFICATE",
			AuthenticationCertificate: s.authCert,
			CurrentUser:               testUserURN,
		},
		accounts: []*models.Account{{
			URN:                        testUserURN,
			SignMethod:                 models.SignMethodAnonymous,
			PKCS12:                     s.pkcs12,
			EncryptedPrivateLicenseKey: eplk,
			LicenseCertificate:         "LICENSE_CERTIFICATE",
			Devices:                    []*models.Device{local},
		}},
	}
}

func TestNewAgent(t *testing.T) {
	s := newADEPTServer(t)

	_, err := NewAgent(nil, &fakeRepository{}, nil)
	require.Error(t, err)
	_, err = NewAgent(testConfig(t, s), nil, nil)
	require.Error(t, err)

	a, err := NewAgent(testConfig(t, s), &fakeRepository{}, nil)
	require.NoError(t, err)
	require.Equal(t, s.baseURL(), a.client.BaseURL())
	require.NoError(t, a.Close())
}

func TestNewResult(t *testing.T) {
	require.Equal(t, Result{OK: true, Message: "done"}, NewResult(nil, "done"))
	require.Equal(t, Result{OK: false, Message: "boom"}, NewResult(fmt.Errorf("boom"), "done"))
}

func TestRunStepsHonoursCancellation(t *testing.T) {
	s := newADEPTServer(t)
	repo := &fakeRepository{}
	a := newTestAgent(t, s, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Login(ctx, Credentials{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, s.hitCount("/adept/ActivationServiceInfo"))
	require.Zero(t, repo.addAccountCalls)
}
