package cli

import (
	"roster-cli/internal/model"
)

// Exit codes let scripts tell failure classes apart without parsing stderr.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitValidation  = 2
	ExitNotFound    = 3
	ExitImport      = 4
	ExitPersistence = 5
)

// ExitCode maps an error returned by the command tree to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case model.IsNotFound(err):
		return ExitNotFound
	case model.IsValidation(err):
		return ExitValidation
	case model.IsImport(err):
		return ExitImport
	case model.IsPersistence(err):
		return ExitPersistence
	default:
		return ExitFailure
	}
}
