package acquisition

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Dump writes every dwell's grid to a file as little-endian float32
// records, one record per Doppler bin, bins in ascending Doppler order.
type Dump struct {
	file    *os.File
	w       *bufio.Writer
	written uint64
}

func OpenDump(path string) (*Dump, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	log.Infof("[acq] acquisition dump enabled, writing to %s", path)
	return &Dump{file: f, w: bufio.NewWriter(f)}, nil
}

func (d *Dump) WriteGrid(g *SearchGrid) error {
	for _, cells := range g.Cells {
		if err := binary.Write(d.w, binary.LittleEndian, cells); err != nil {
			return err
		}
		d.written += uint64(4 * len(cells))
	}
	return nil
}

func (d *Dump) Close() error {
	if err := d.w.Flush(); err != nil {
		d.file.Close()
		return err
	}
	log.Infof("[acq] closed acquisition dump %s (%s)", d.file.Name(), humanize.Bytes(d.written))
	return d.file.Close()
}
