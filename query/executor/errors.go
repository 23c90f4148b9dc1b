package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Classifier maps a driver error to the error taxonomy, returning errors it
// does not recognize unchanged.
type Classifier func(error) error

// classifyError converts any execution error to a *types.Error.
func (e *Executor) classifyError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var te *types.Error
	if errors.As(err, &te) {
		return te
	}
	if ctx.Err() != nil {
		return types.AsError(ctx.Err())
	}
	if e.classify != nil {
		if classified := e.classify(err); errors.As(classified, &te) {
			return te
		}
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return types.Wrap(types.CodeUpstreamDriverError, err, "database connection lost")
	}
	return types.AsError(err)
}
