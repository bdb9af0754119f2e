package discovery

import (
	"fmt"

	"github.com/dshills/eventsys/internal/event/execution"
)

// SignatureRule names the check a handler method failed.
type SignatureRule string

// Signature rules.
const (
	RuleNilHandler    SignatureRule = "nil-handler"
	RuleParamCount    SignatureRule = "parameter-count"
	RuleEventParam    SignatureRule = "event-parameter"
	RuleExecutorParam SignatureRule = "executor-parameter"
	RuleResult        SignatureRule = "result"
	RuleEventType     SignatureRule = "event-type"
)

// SignatureError reports an invalid handler method. Bind panics with it.
type SignatureError struct {
	Receiver string
	Method   string
	Rule     SignatureRule
	Detail   string
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("discovery: %s: %s", e.Rule, e.Receiver)
	}
	return fmt.Sprintf("discovery: %s: %s.%s %s", e.Rule, e.Receiver, e.Method, e.Detail)
}

// Unwrap returns execution.ErrContractViolation.
func (e *SignatureError) Unwrap() error {
	return execution.ErrContractViolation
}
