package pool

import (
	"os"
	"strconv"
)

// Domain is an opaque execution-domain identity. Two domains are the same iff
// their tokens compare equal.
type Domain string

// ProcessDomain identifies the current OS process.
func ProcessDomain() Domain {
	return Domain("pid:" + strconv.Itoa(os.Getpid()))
}
