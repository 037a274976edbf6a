//go:build !wasip1

package sdk

// Stubs keep the package compilable outside the sandbox so extension
// logic can be unit tested on the host. They answer every call with an
// empty response, which the hostcall helper reports as an error.

func hostRead(packed uint64) uint64  { return 0 }
func hostWrite(packed uint64) uint64 { return 0 }
func hostExec(packed uint64) uint64  { return 0 }
func hostHTTP(packed uint64) uint64  { return 0 }
func hostEnv(packed uint64) uint64   { return 0 }
func hostLog(packed uint64)          {}
