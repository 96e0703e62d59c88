/*
Package ledgeridx maintains an in-memory index of Metaplex accounts (vaults,
token metadata, auctions and the metaplex store program) fed by a ledger
source, and answers lookups against it.

We implement:

1. Decoding of raw account records into typed entities, gated by owner
program and account discriminator.

2. An index store: one table per entity kind keyed by account address, plus
secondary indices by foreign key (mint, auction, vault and so on).

3. Bulk loading with atomic publish, incremental updates from notifications,
and mint enrichment that hides fungible tokens.

4. Immutable views for queries, including the store-admissible metadata set.

# Technical Details

**Tables.**
Tables live in a go-memdb database. Each row wraps the decoded entity with
its slot, lamports, payload fingerprint and a modification counter. The "id"
index is the account key; secondary indices are computed by the table's
indexer func on every put and stored in the row, so re-indexing after a
change drops stale entries automatically.

**Index keys.**
Index keys are fixed-width concatenations of their parts: pubkeys as 32 raw
bytes, integers big-endian. Lookups by a leading subset of parts work as
prefix scans, which gives ordered results (safety deposit boxes by order,
bidders by auction).

**Writes.**
A put is a no-op when the payload fingerprint and row flags are unchanged,
and is rejected as stale when it carries an older slot than the stored row.
A bulk load builds a separate store and swaps it in with a single pointer
store, so readers see either the old or the new contents.

**Snapshots and journal.**
The raw records of a successful load can be written to a bbolt file and
served back as a Source. Notifications can be appended to a journal (see
package journal) and replayed on startup.
*/
package ledgeridx
