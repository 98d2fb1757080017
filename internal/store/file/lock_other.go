//go:build !unix

package file

// lockFile is a no-op where flock is unavailable; the in-process mutex still
// serializes access from this process.
func lockFile(_ string, _ bool) (func(), error) {
	return func() {}, nil
}
