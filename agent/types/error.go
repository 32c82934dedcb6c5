package types

import (
	"errors"
	"fmt"
)

type AgentComponent string

const (
	AgentComponentLogin       AgentComponent = "login"
	AgentComponentFulfillment AgentComponent = "fulfillment"
	AgentComponentReader      AgentComponent = "reader"
	AgentComponentAccount     AgentComponent = "account"
	AgentComponentDatabase    AgentComponent = "database"
	AgentComponentConfig      AgentComponent = "config"
)

type AgentOperation string

const (
	AgentOperationReadingConfig           AgentOperation = "reading-config"
	AgentOperationReadingValidatingConfig AgentOperation = "validating-config"

	AgentOperationDiscoverConfig     AgentOperation = "discover-config"
	AgentOperationCreateDevice       AgentOperation = "create-device"
	AgentOperationBuildAuthPayload   AgentOperation = "build-auth-payload"
	AgentOperationEncryptAuthPayload AgentOperation = "encrypt-auth-payload"
	AgentOperationGenerateKeyPairs   AgentOperation = "generate-keypairs"
	AgentOperationWrapKeyPairs       AgentOperation = "wrap-keypairs"
	AgentOperationSignIn             AgentOperation = "sign-in"
	AgentOperationActivateDevice     AgentOperation = "activate-device"
	AgentOperationPersist            AgentOperation = "persist"

	AgentOperationParseToken    AgentOperation = "parse-token"
	AgentOperationLicenseAuth   AgentOperation = "license-auth"
	AgentOperationLicenseInit   AgentOperation = "license-init"
	AgentOperationFulfill       AgentOperation = "fulfill"
	AgentOperationDownload      AgentOperation = "download"
	AgentOperationBuildRights   AgentOperation = "build-rights"
	AgentOperationWriteOutput   AgentOperation = "write-output"
	AgentOperationReadDevice    AgentOperation = "read-device"
	AgentOperationWriteDevice   AgentOperation = "write-device"
	AgentOperationSelectAccount AgentOperation = "select-account"

	AgentOperationDatabaseRead   AgentOperation = "database-read"
	AgentOperationDatabaseWrite  AgentOperation = "database-write"
	AgentOperationDatabaseDelete AgentOperation = "database-delete"
	AgentOperationDatabaseUpdate AgentOperation = "database-update"
)

// AgentError provides structured error handling
type AgentError struct {
	Component AgentComponent
	Operation AgentOperation
	Err       error
	Retryable bool
	Context   map[string]interface{}
}

func (e *AgentError) Error() string {
	if len(e.Context) > 0 {
		return fmt.Sprintf("[%s:%s] %v (context: %v)", e.Component, e.Operation, e.Err, e.Context)
	}
	return fmt.Sprintf("[%s:%s] %v", e.Component, e.Operation, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

func NewAgentError(component AgentComponent, operation AgentOperation, err error, retryable bool) *AgentError {
	return &AgentError{
		Component: component,
		Operation: operation,
		Err:       err,
		Retryable: retryable,
	}
}

func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsRetryable reports whether err carries an AgentError marked retryable.
func IsRetryable(err error) bool {
	var agentErr *AgentError
	return errors.As(err, &agentErr) && agentErr.Retryable
}

func LoginError(operation AgentOperation, err error, retryable bool) *AgentError {
	return NewAgentError(AgentComponentLogin, operation, err, retryable)
}

func FulfillmentError(operation AgentOperation, err error, retryable bool) *AgentError {
	return NewAgentError(AgentComponentFulfillment, operation, err, retryable)
}

func ReaderError(operation AgentOperation, err error, retryable bool) *AgentError {
	return NewAgentError(AgentComponentReader, operation, err, retryable)
}

func AccountError(operation AgentOperation, err error) *AgentError {
	return NewAgentError(AgentComponentAccount, operation, err, false)
}

func DatabaseError(operation AgentOperation, err error) *AgentError {
	return NewAgentError(AgentComponentDatabase, operation, err, false)
}

func ConfigError(operation AgentOperation, err error) *AgentError {
	return NewAgentError(AgentComponentConfig, operation, err, false)
}
