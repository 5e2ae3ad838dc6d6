package cmn

import (
	"github.com/pkg/errors"
)

// Assert panics when cond is false. Reserved for invariant violations that
// indicate a contract broken by the caller (e.g. the item subsystem), which
// spec.md classifies as fatal rather than recoverable.
func Assert(cond bool) {
	if !cond {
		panic(errors.New("assertion failed"))
	}
}

func AssertMsg(cond bool, msg string) {
	if !cond {
		panic(errors.New(msg))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(errors.Wrap(err, "unexpected error"))
	}
}
