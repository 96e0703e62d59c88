package ledgeridx

import (
	"encoding/json"
)

type TableStats struct {
	Rows      int
	IndexRows int
	// Listed counts metadata rows visible through the listed index.
	Listed int
}

type StoreStats struct {
	Tables     map[string]TableStats
	Rows       int
	WriteCount uint64
	NoopCount  uint64
}

func (v *View) TableStats(tbl *Table) TableStats {
	var result TableStats
	it := must(v.txn.Get(tbl.name, idIndexName))
	for obj := it.Next(); obj != nil; obj = it.Next() {
		result.Rows++
		r := obj.(*row)
		for _, keys := range r.indexKeys {
			result.IndexRows += len(keys)
		}
		if tbl == metadataTable && len(r.indexKeys[metadataByMint.pos]) > 0 {
			result.Listed++
		}
	}
	return result
}

func (v *View) Stats() StoreStats {
	result := StoreStats{
		Tables:     make(map[string]TableStats, len(v.store.schema.tables)),
		WriteCount: v.store.WriteCount.Load(),
		NoopCount:  v.store.NoopCount.Load(),
	}
	for _, tbl := range v.store.schema.tables {
		ts := v.TableStats(tbl)
		result.Tables[tbl.name] = ts
		result.Rows += ts.Rows
	}
	return result
}

func loggableEntity(ent Entity) string {
	if ent == nil {
		return "<none>"
	}
	return string(must(json.Marshal(ent)))
}
