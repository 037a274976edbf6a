package hostops

import "os"

// Getenv reads one host environment variable.
func (o *Operations) Getenv(name string) (string, bool) {
	return os.LookupEnv(name)
}
