package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"github.com/libreadept/adl/agent/types"
	"github.com/libreadept/adl/sdk/adept"
	"github.com/libreadept/adl/sdk/models"
	"github.com/libreadept/adl/shared-lib/archive"
	"github.com/libreadept/adl/shared-lib/crypto"
	sharedhttp "github.com/libreadept/adl/shared-lib/http"
)

const (
	BookExtension    = ".epub"
	fallbackBookName = "book"
)

var (
	ErrAuthRefused        = errors.New("operator refused account authentication")
	ErrLicenseInitRefused = errors.New("license service initialization refused")
)

type FulfillOptions struct {
	ACSMFile string
	// OutputDir defaults to the configured output directory.
	OutputDir string
	// DryRun stops once the signed fulfill request is built.
	DryRun bool
}

type FulfillOutput struct {
	Title string
	// Path is empty for a dry run.
	Path string
	// Request is the signed fulfill request, set for a dry run.
	Request []byte
}

// FulfillmentFlow turns an ACSM token into a licensed book on disk.
type FulfillmentFlow struct {
	agent *Agent
	opts  FulfillOptions

	config  *models.Config
	account *models.Account
	local   *models.Device

	acsm   *adept.ACSM
	key    []byte
	result adept.FulfillmentResult
	book   []byte
	rights []byte
	output FulfillOutput
}

func (a *Agent) NewFulfillmentFlow(opts FulfillOptions) *FulfillmentFlow {
	if opts.OutputDir == "" {
		opts.OutputDir = a.config.OutputDir
	}
	return &FulfillmentFlow{agent: a, opts: opts}
}

func (a *Agent) Fulfill(ctx context.Context, opts FulfillOptions) (*FulfillOutput, error) {
	return a.NewFulfillmentFlow(opts).Run(ctx)
}

func (f *FulfillmentFlow) Run(ctx context.Context) (*FulfillOutput, error) {
	a := f.agent
	a.log.Infow("Starting fulfillment", "acsm", f.opts.ACSMFile, "dryRun", f.opts.DryRun)

	var err error
	f.config, f.account, f.local, err = a.currentAccount()
	if err != nil {
		return nil, types.FulfillmentError(types.AgentOperationSelectAccount, err, false)
	}

	steps := []step{
		{"PARSE_TOKEN", types.AgentOperationParseToken, f.parseToken},
		{"LICENSE_AUTH", types.AgentOperationLicenseAuth, f.licenseAuth},
		{"LICENSE_INIT", types.AgentOperationLicenseInit, f.licenseInit},
		{"FULFILL", types.AgentOperationFulfill, f.fulfill},
	}
	if !f.opts.DryRun {
		steps = append(steps,
			step{"DOWNLOAD", types.AgentOperationDownload, f.download},
			step{"BUILD_RIGHTS", types.AgentOperationBuildRights, f.buildRights},
			step{"WRITE_OUTPUT", types.AgentOperationWriteOutput, f.writeOutput},
		)
	}
	if err := a.runSteps(ctx, "fulfillment", types.FulfillmentError, steps); err != nil {
		return nil, err
	}

	a.log.Infow("Fulfillment done", "title", f.output.Title, "path", f.output.Path)
	return &f.output, nil
}

func (f *FulfillmentFlow) parseToken(context.Context) error {
	acsm, err := adept.ReadACSMFile(f.opts.ACSMFile)
	if err != nil {
		return err
	}
	if err := sharedhttp.ValidateBaseURL(acsm.OperatorURL); err != nil {
		return fmt.Errorf("invalid operator URL: %w", err)
	}
	f.acsm = acsm
	f.output.Title = acsm.Title
	return nil
}

func (f *FulfillmentFlow) licenseAuth(ctx context.Context) error {
	a := f.agent
	cert, err := crypto.ExtractCertificate(f.account.PKCS12, f.local.DeviceKey)
	if err != nil {
		return err
	}

	ok, err := adept.Execute[bool](ctx, a.client, adept.FFAuth{
		OperatorURL:               f.acsm.OperatorURL,
		User:                      f.account.URN,
		Certificate:               cert,
		LicenseCertificate:        f.account.LicenseCertificate,
		AuthenticationCertificate: f.config.AuthenticationCertificate,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthRefused
	}
	return nil
}

func (f *FulfillmentFlow) licenseInit(ctx context.Context) error {
	a := f.agent
	key, err := crypto.ExtractPrivateKey(f.account.PKCS12, f.local.DeviceKey)
	if err != nil {
		return err
	}
	f.key = key

	n, expiration, err := a.signedStamp()
	if err != nil {
		return err
	}
	ok, err := adept.Execute[bool](ctx, a.client, adept.InitLicense{
		BaseURL:     a.config.LicenseServiceURL,
		OperatorURL: f.acsm.OperatorURL,
		User:        f.account.URN,
		Nonce:       n,
		Expiration:  expiration,
		Key:         key,
		Signer:      a.signer,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrLicenseInitRefused
	}
	return nil
}

func (f *FulfillmentFlow) fulfill(ctx context.Context) error {
	a := f.agent
	op := adept.Fulfillment{
		OperatorURL: f.acsm.OperatorURL,
		User:        f.account.URN,
		Device:      f.local,
		Token:       f.acsm.Token,
		Key:         f.key,
		Signer:      a.signer,
	}

	if f.opts.DryRun {
		request, err := op.Build()
		if err != nil {
			return err
		}
		f.output.Request = request
		return nil
	}

	result, err := adept.Execute[adept.FulfillmentResult](ctx, a.client, op)
	if err != nil {
		return err
	}
	f.result = result
	if strings.TrimSpace(result.Title) != "" {
		f.output.Title = result.Title
	}
	a.log.Infow("Book fulfilled", "title", f.output.Title, "url", result.URL)
	return nil
}

func (f *FulfillmentFlow) download(ctx context.Context) error {
	book, err := f.agent.client.Download(ctx, f.result.URL)
	if err != nil {
		return err
	}
	f.book = book
	return nil
}

func (f *FulfillmentFlow) buildRights(context.Context) error {
	rights, err := adept.RightsDocument(f.result.LicenseToken)
	if err != nil {
		return err
	}
	f.rights = rights
	return nil
}

func (f *FulfillmentFlow) writeOutput(context.Context) error {
	patched, err := archive.InsertMember(f.book, adept.RightsMember, f.rights)
	if err != nil {
		return err
	}

	target := filepath.Join(f.opts.OutputDir, OutputFileName(f.output.Title))
	if err := writeFileAtomic(target, patched); err != nil {
		return err
	}
	f.output.Path = target
	return nil
}

// OutputFileName derives the book file name from its title. Titles that are
// empty or would escape the output directory are slugified.
func OutputFileName(title string) string {
	name := strings.TrimSpace(title)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		name = slug.Make(name)
	}
	if name == "" {
		name = fallbackBookName
	}
	return name + BookExtension
}

func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
