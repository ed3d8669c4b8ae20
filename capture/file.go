package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"go.uber.org/ratelimit"

	"github.com/jrwynneiii/gnssacq/config"
)

// FileSource replays a capture of interleaved little-endian float32 I/Q
// pairs (cf32, the gr_complex file format).
type FileSource struct {
	path       string
	sampleRate float64
	chunk      int
	realtime   bool
	loop       bool

	file      *os.File
	reader    *bufio.Reader
	delivered uint64
}

func OpenFile(conf config.SourceConf) (*FileSource, error) {
	if conf.SampleRate <= 0 {
		return nil, fmt.Errorf("source %s: sample rate must be positive", conf.File)
	}
	if conf.ChunkSize <= 0 {
		return nil, fmt.Errorf("source %s: chunk size must be positive", conf.File)
	}
	f, err := os.Open(conf.File)
	if err != nil {
		return nil, err
	}
	if fi, err := f.Stat(); err == nil {
		log.Infof("[capture] replaying %s (%s, %s samples at %s sps)", conf.File,
			humanize.Bytes(uint64(fi.Size())), humanize.Comma(fi.Size()/8), humanize.Ftoa(conf.SampleRate))
	}
	return &FileSource{
		path:       conf.File,
		sampleRate: conf.SampleRate,
		chunk:      conf.ChunkSize,
		realtime:   conf.Realtime,
		loop:       conf.Loop,
		file:       f,
		reader:     bufio.NewReaderSize(f, conf.ChunkSize*8),
	}, nil
}

func (s *FileSource) Rate() float64 {
	return s.sampleRate
}

func (s *FileSource) Delivered() uint64 {
	return s.delivered
}

// Run sends chunks to out until the file ends (unless looping) or ctx is
// done. In realtime mode chunks are paced at the nominal sample rate.
func (s *FileSource) Run(ctx context.Context, out chan<- []complex64) error {
	var rl ratelimit.Limiter
	if s.realtime {
		per := time.Duration(float64(s.chunk) / s.sampleRate * float64(time.Second))
		rl = ratelimit.New(1, ratelimit.Per(per))
	}

	buf := make([]byte, s.chunk*8)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rl != nil {
			rl.Take()
		}

		n, err := io.ReadFull(s.reader, buf)
		if n >= 8 {
			select {
			case out <- decodeCF32(buf[:n-n%8]):
				s.delivered += uint64(n / 8)
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		switch {
		case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
			if !s.loop {
				log.Infof("[capture] end of %s after %s samples", s.path, humanize.Comma(int64(s.delivered)))
				return nil
			}
			if _, err := s.file.Seek(0, io.SeekStart); err != nil {
				return err
			}
			s.reader.Reset(s.file)
		case err != nil:
			return err
		}
	}
}

func decodeCF32(b []byte) []complex64 {
	out := make([]complex64, len(b)/8)
	for i := range out {
		re := math.Float32frombits(binary.LittleEndian.Uint32(b[8*i:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[8*i+4:]))
		out[i] = complex(re, im)
	}
	return out
}

func (s *FileSource) Close() error {
	return s.file.Close()
}
