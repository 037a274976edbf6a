//go:build wasip1

package sdk

// Imports from the portcullis_host module. Each takes a packed ptr/len
// of a JSON request in guest memory and returns a packed ptr/len of the
// JSON response, except host_log which returns nothing.

//go:wasmimport portcullis_host host_read
func hostRead(packed uint64) uint64

//go:wasmimport portcullis_host host_write
func hostWrite(packed uint64) uint64

//go:wasmimport portcullis_host host_exec
func hostExec(packed uint64) uint64

//go:wasmimport portcullis_host host_http
func hostHTTP(packed uint64) uint64

//go:wasmimport portcullis_host host_env
func hostEnv(packed uint64) uint64

//go:wasmimport portcullis_host host_log
func hostLog(packed uint64)
