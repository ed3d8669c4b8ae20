// Package capture replays recorded baseband captures as a sample source.
package capture

import "context"

// Source delivers complex baseband sample blocks. Run blocks until the
// source is exhausted or ctx is done; it never closes out. radio.Radio and
// FileSource both satisfy it.
type Source interface {
	Rate() float64
	Run(ctx context.Context, out chan<- []complex64) error
	Close() error
}
