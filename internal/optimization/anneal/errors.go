package anneal

import (
	"github.com/copyleftdev/anneal/internal/optimization"
)

const component = "anneal"

func wrap(err error, op, format string, args ...interface{}) error {
	return optimization.WrapErrorf(err, format, args...).
		WithComponent(component).
		WithOperation(op)
}
