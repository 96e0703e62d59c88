package ledgeridx

import (
	"fmt"
)

type (
	// Change describes the outcome of one put.
	Change struct {
		table    *Table
		Op       Op
		Key      Pubkey
		Entity   Entity
		Old      Entity
		ModCount uint64
		Reason   string
	}

	Op int
)

const (
	// OpNone means nothing changed: same payload and classification.
	OpNone Op = iota
	OpPut
	// OpSkip means the entity does not belong to the configured store.
	OpSkip
	// OpStale means the update was observed at an older slot than the
	// stored row.
	OpStale
)

func (chg *Change) Table() *Table {
	return chg.table
}

func (chg *Change) TableName() string {
	if chg.table == nil {
		return ""
	}
	return chg.table.name
}

func (chg *Change) HasOld() bool {
	return chg.Old != nil
}

func (chg *Change) String() string {
	s := fmt.Sprintf("%s %s/%v", chg.Op, chg.TableName(), chg.Key)
	if chg.Reason != "" {
		s += ": " + chg.Reason
	}
	return s
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpSkip:
		return "skip"
	case OpStale:
		return "stale"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}
