package deployservice

type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindMaterialize ErrorKind = "materialize"
	KindStore       ErrorKind = "store"
	KindInstall     ErrorKind = "install"
	KindBuild       ErrorKind = "build"
	KindProcess     ErrorKind = "process"
)

// DeployError is a failed deploy step. Message is what the client sees in
// the result; Err keeps the underlying cause for logs.
type DeployError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DeployError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

func newDeployError(kind ErrorKind, message string, err error) *DeployError {
	return &DeployError{Kind: kind, Message: message, Err: err}
}
