// Package wordcache keeps materialized FIFO word streams on disk so a
// transmitter can skip encoding payloads it has already sent.
package wordcache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"log"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/uu-core/oqpsk/pkg/phy"
)

// DefaultDir is used when no directory is configured.
const DefaultDir = "~/.oqpsk-cache"

var ErrMiss = errors.New("not in cache")

type Cache struct {
	dir string
}

// Entry is one cached encoding. Data and Repeat are stored so a checksum
// collision is detected instead of returning someone else's words.
type Entry struct {
	Data   []byte
	Repeat int
	Words  []phy.Word
	Bits   int
}

// Open creates the cache directory if needed. A leading ~ is expanded to the
// user's home directory.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		dir = DefaultDir
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string { return c.dir }

// Key is the CRC-32 of the data followed by the repeat factor.
func Key(data []byte, repeat int) uint32 {
	h := crc32.NewIEEE()
	h.Write(data)
	h.Write(binary.BigEndian.AppendUint32(nil, uint32(repeat)))
	return h.Sum32()
}

func (c *Cache) path(key uint32) string {
	return filepath.Join(c.dir, fmt.Sprintf("%X", key)+".wordcache")
}

func (c *Cache) Load(data []byte, repeat int) (*Entry, error) {
	file, err := os.Open(c.path(Key(data, repeat)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var e Entry
	decoder := gob.NewDecoder(file)
	err = decoder.Decode(&e)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file.Name(), err)
	}
	if e.Repeat != repeat || !bytes.Equal(e.Data, data) {
		return nil, fmt.Errorf("%w: key %X holds other data", ErrMiss, Key(data, repeat))
	}
	return &e, nil
}

func (c *Cache) Save(e *Entry) error {
	file, err := os.OpenFile(c.path(Key(e.Data, e.Repeat)), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	return encoder.Encode(e)
}

// Words returns the word stream for data, from the cache when present.
// Otherwise it encodes data into at most capacity words and stores the
// result. A nil cache always encodes.
func (c *Cache) Words(data []byte, repeat int, capacity int) (*Entry, error) {
	if c != nil {
		e, err := c.Load(data, repeat)
		if err == nil {
			log.Printf("[DEBUG] word cache hit: %d bytes, %d words", len(data), len(e.Words))
			return e, nil
		}
		if !errors.Is(err, ErrMiss) {
			log.Printf("[INFO] word cache unreadable, encoding again: %v", err)
		}
	}
	seq, err := phy.Convert(data, repeat)
	if err != nil {
		return nil, err
	}
	words, err := phy.Collect(seq, capacity)
	if err != nil {
		return nil, err
	}
	stats, err := phy.Measure(data, repeat)
	if err != nil {
		return nil, err
	}
	e := &Entry{
		Data:   bytes.Clone(data),
		Repeat: repeat,
		Words:  words,
		Bits:   stats.Bits,
	}
	if c != nil {
		if err := c.Save(e); err != nil {
			log.Printf("[ERROR] word cache save: %v", err)
		}
	}
	return e, nil
}
