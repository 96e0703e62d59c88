package ledgeridx

import (
	"encoding/hex"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpIndices
	DumpIndexRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the view's tables as text, for debugging and tests.
func (v *View) Dump(f DumpFlags) string {
	var buf strings.Builder
	for _, tbl := range v.store.schema.tables {
		v.dumpTable(&buf, f, tbl)
	}
	return buf.String()
}

func (v *View) dumpTable(w *strings.Builder, f DumpFlags, tbl *Table) {
	prefix := tbl.name
	s := v.TableStats(tbl)
	if s.Rows == 0 && !f.Contains(DumpAll) {
		return
	}

	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d rows)\n", prefix, s.Rows)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: index_rows = %d, listed = %d\n", prefix, s.IndexRows, s.Listed)
	}

	if f.Contains(DumpRows) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		it := must(v.txn.Get(tbl.name, idIndexName))
		var rowPos int
		for obj := it.Next(); obj != nil; obj = it.Next() {
			rowPos++
			r := obj.(*row)
			fmt.Fprintf(w, "%s.%d = (m%d s%d f%d) %v %s\n", prefix, rowPos, r.modCount, r.meta.Slot, r.flags, r.key, loggableEntity(r.entity))
		}
	}

	if f.Contains(DumpIndices) {
		for _, idx := range tbl.indices {
			v.dumpIndex(w, f, idx)
		}
	}
}

func (v *View) dumpIndex(w *strings.Builder, f DumpFlags, idx *Index) {
	fmt.Fprintln(w, dumpSep2)
	prefix := idx.FullName()
	fmt.Fprintln(w, prefix)

	if f.Contains(DumpIndexRows) {
		it := must(v.txn.Get(idx.table.name, idIndexName))
		var rowPos int
		for obj := it.Next(); obj != nil; obj = it.Next() {
			r := obj.(*row)
			for _, k := range r.indexKeys[idx.pos] {
				rowPos++
				fmt.Fprintf(w, "%s.%d: %s => %v\n", prefix, rowPos, indexKeyString(k), r.key)
			}
		}
	}
}

// indexKeyString renders 32-byte chunks as pubkeys and the rest as hex.
func indexKeyString(k []byte) string {
	var parts []string
	for len(k) >= PubkeySize {
		parts = append(parts, PubkeyFromBytes(k[:PubkeySize]).String())
		k = k[PubkeySize:]
	}
	if len(k) > 0 {
		parts = append(parts, hex.EncodeToString(k))
	}
	return strings.Join(parts, "|")
}
