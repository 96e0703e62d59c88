package ledgeridx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

const snapshotVersion = 1

var snapshotMetaBucket = []byte("_meta")

type snapshotHeader struct {
	Version   int       `msgpack:"v"`
	CreatedAt time.Time `msgpack:"t"`
	Counts    []int     `msgpack:"n"`
}

type SnapshotOptions struct {
	IsTesting bool
	Now       time.Time
}

// Snapshot is a bbolt file holding the raw records of the last successful
// load, one bucket per program. It implements Source, so a store can be
// rebuilt from it without touching the network.
type Snapshot struct {
	bdb    *bbolt.DB
	header snapshotHeader
}

func boltOptions(isTesting bool, readOnly bool) *bbolt.Options {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.ReadOnly = readOnly
	if isTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
	}
	return bopt
}

// WriteSnapshot atomically replaces the file at path with the given records.
func WriteSnapshot(path string, records map[Pubkey][]Record, opt SnapshotOptions) error {
	if opt.Now.IsZero() {
		opt.Now = time.Now()
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	bdb, err := bbolt.Open(tmp, 0666, boltOptions(opt.IsTesting, false))
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		hdr := snapshotHeader{Version: snapshotVersion, CreatedAt: opt.Now}
		for program, recs := range records {
			b, err := btx.CreateBucket(bytes.Clone(program[:]))
			if err != nil {
				return err
			}
			for i := range recs {
				rec := &recs[i]
				if err := b.Put(bytes.Clone(rec.Key[:]), encodeRecord(rec)); err != nil {
					return err
				}
			}
			hdr.Counts = append(hdr.Counts, len(recs))
		}
		mb, err := btx.CreateBucket(snapshotMetaBucket)
		if err != nil {
			return err
		}
		return mb.Put([]byte("header"), must(msgpack.Marshal(&hdr)))
	})
	closeErr := bdb.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

func OpenSnapshot(path string, opt SnapshotOptions) (*Snapshot, error) {
	bdb, err := bbolt.Open(path, 0666, boltOptions(opt.IsTesting, true))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	snap := &Snapshot{bdb: bdb}
	err = bdb.View(func(btx *bbolt.Tx) error {
		mb := btx.Bucket(snapshotMetaBucket)
		if mb == nil {
			return fmt.Errorf("missing header")
		}
		if err := msgpack.Unmarshal(mb.Get([]byte("header")), &snap.header); err != nil {
			return fmt.Errorf("header: %w", err)
		}
		if snap.header.Version != snapshotVersion {
			return fmt.Errorf("unsupported version %d", snap.header.Version)
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}

func (snap *Snapshot) CreatedAt() time.Time {
	return snap.header.CreatedAt
}

func (snap *Snapshot) Close() error {
	return snap.bdb.Close()
}

// FetchProgramAccounts returns the stored records of a program, ordered by
// account key. A program absent from the snapshot yields no records.
func (snap *Snapshot) FetchProgramAccounts(ctx context.Context, program Pubkey) ([]Record, error) {
	var result []Record
	err := snap.bdb.View(func(btx *bbolt.Tx) error {
		b := btx.Bucket(program[:])
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := decodeRecord(v, &rec); err != nil {
				return fmt.Errorf("record %x: %w", k, err)
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func encodeRecord(rec *Record) []byte {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := enc.Encode(rec)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode record %v: %w", rec.Key, err))
	}
	return buf.Bytes()
}

func decodeRecord(buf []byte, rec *Record) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(rec)
	msgpack.PutDecoder(dec)
	return err
}
