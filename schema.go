package ledgeridx

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/hashicorp/go-memdb"
)

const idIndexName = "id"

// Schema is the set of tables the index store maintains. Each table holds
// one entity kind keyed by account address, plus any number of secondary
// indices computed by the table's indexer func.
type Schema struct {
	tables            []*Table
	tablesByLowerName map[string]*Table
	tablesByKind      map[Kind]*Table
}

func NewSchema() *Schema {
	return &Schema{
		tablesByLowerName: make(map[string]*Table),
		tablesByKind:      make(map[Kind]*Table),
	}
}

func (scm *Schema) Tables() []*Table {
	return append([]*Table(nil), scm.tables...)
}

func (scm *Schema) TableNamed(name string) *Table {
	return scm.tablesByLowerName[strings.ToLower(name)]
}

func (scm *Schema) TableByKind(kind Kind) *Table {
	tbl := scm.tablesByKind[kind]
	if tbl == nil {
		panic(fmt.Errorf("no table defined for %v", kind))
	}
	return tbl
}

func (scm *Schema) addTable(tbl *Table) {
	lower := strings.ToLower(tbl.name)
	if scm.tablesByLowerName[lower] != nil {
		panic(fmt.Errorf("duplicate table %s", tbl.name))
	}
	if scm.tablesByKind[tbl.kind] != nil {
		panic(fmt.Errorf("table %s: %v already stored in %s", tbl.name, tbl.kind, scm.tablesByKind[tbl.kind].name))
	}
	tbl.pos = len(scm.tables)
	scm.tables = append(scm.tables, tbl)
	scm.tablesByLowerName[lower] = tbl
	scm.tablesByKind[tbl.kind] = tbl
}

func (scm *Schema) memdbSchema() *memdb.DBSchema {
	dbs := &memdb.DBSchema{Tables: make(map[string]*memdb.TableSchema, len(scm.tables))}
	for _, tbl := range scm.tables {
		ts := &memdb.TableSchema{
			Name: tbl.name,
			Indexes: map[string]*memdb.IndexSchema{
				idIndexName: {
					Name:    idIndexName,
					Unique:  true,
					Indexer: idIndexer{},
				},
			},
		}
		for _, idx := range tbl.indices {
			ts.Indexes[idx.name] = &memdb.IndexSchema{
				Name:         idx.name,
				AllowMissing: true,
				Indexer:      rowIndexer{idx.pos},
			}
		}
		dbs.Tables[tbl.name] = ts
	}
	return dbs
}

type Table struct {
	schema  *Schema
	name    string
	pos     int
	kind    Kind
	indices []*Index
	indexer func(ent Entity, ib *IndexBuilder)
}

func (tbl *Table) Name() string {
	return tbl.name
}

func (tbl *Table) Kind() Kind {
	return tbl.kind
}

func (tbl *Table) Indices() []*Index {
	return append([]*Index(nil), tbl.indices...)
}

// AddTable defines a table holding entities of type E. The indexer, if any,
// is called on every put and adds the row's secondary index keys.
func AddTable[E any, PE interface {
	*E
	Entity
}](scm *Schema, name string, indexer func(ent *E, ib *IndexBuilder), indices []*Index) *Table {
	var zero E
	tbl := &Table{
		schema: scm,
		name:   name,
		kind:   PE(&zero).Kind(),
	}
	if indexer != nil {
		tbl.indexer = func(ent Entity, ib *IndexBuilder) {
			indexer((*E)(ent.(PE)), ib)
		}
	}
	scm.addTable(tbl)
	for _, idx := range indices {
		tbl.addIndex(idx)
	}
	return tbl
}

func (tbl *Table) addIndex(idx *Index) {
	if idx.table != nil {
		panic(fmt.Errorf("index %s already added to table %s", idx.name, idx.table.name))
	}
	if idx.name == idIndexName {
		panic(fmt.Errorf("%s: index name %q is reserved", tbl.name, idx.name))
	}
	for _, other := range tbl.indices {
		if other.name == idx.name {
			panic(fmt.Errorf("%s: duplicate index %s", tbl.name, idx.name))
		}
	}
	idx.table = tbl
	idx.pos = len(tbl.indices)
	tbl.indices = append(tbl.indices, idx)
}

type Index struct {
	table *Table
	pos   int
	name  string
}

func AddIndex(name string) *Index {
	return &Index{name: name}
}

func (idx *Index) Table() *Table {
	return idx.table
}

func (idx *Index) ShortName() string {
	return idx.name
}

func (idx *Index) FullName() string {
	return idx.table.name + "." + idx.name
}

// IndexBuilder collects the secondary index keys of one row.
type IndexBuilder struct {
	tbl      *Table
	keys     [][][]byte
	Flags    RowFlags
	Programs ProgramIDs
}

func makeIndexBuilder(tbl *Table, flags RowFlags, programs ProgramIDs) IndexBuilder {
	return IndexBuilder{
		tbl:      tbl,
		keys:     make([][][]byte, len(tbl.indices)),
		Flags:    flags,
		Programs: programs,
	}
}

// Add adds an index entry. Parts may be Pubkey, uint8, uint16, uint32 or
// uint64; they are concatenated into a fixed-width key.
func (b *IndexBuilder) Add(idx *Index, parts ...any) {
	if idx.table != b.tbl {
		panic(fmt.Errorf("%s: attempted to add entry to foreign index %s", b.tbl.name, idx.FullName()))
	}
	b.keys[idx.pos] = append(b.keys[idx.pos], must(appendIndexKey(nil, parts)))
}

func appendIndexKey(buf []byte, parts []any) ([]byte, error) {
	for _, p := range parts {
		switch v := p.(type) {
		case Pubkey:
			buf = append(buf, v[:]...)
		case *Pubkey:
			buf = append(buf, v[:]...)
		case uint8:
			buf = append(buf, v)
		case uint16:
			buf = binary.BigEndian.AppendUint16(buf, v)
		case uint32:
			buf = binary.BigEndian.AppendUint32(buf, v)
		case uint64:
			buf = binary.BigEndian.AppendUint64(buf, v)
		case []byte:
			buf = append(buf, v...)
		default:
			return nil, fmt.Errorf("unsupported index key part %T", p)
		}
	}
	return buf, nil
}

type idIndexer struct{}

func (idIndexer) FromObject(raw any) (bool, []byte, error) {
	r := raw.(*row)
	return true, r.key[:], nil
}

func (idIndexer) FromArgs(args ...any) ([]byte, error) {
	return appendIndexKey([]byte{}, args)
}

type rowIndexer struct {
	pos int
}

func (ix rowIndexer) FromObject(raw any) (bool, [][]byte, error) {
	r := raw.(*row)
	keys := r.indexKeys[ix.pos]
	return len(keys) > 0, keys, nil
}

func (ix rowIndexer) FromArgs(args ...any) ([]byte, error) {
	return appendIndexKey([]byte{}, args)
}
