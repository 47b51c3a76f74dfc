package books

// OpKind identifies a transaction operation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one intended mutation inside a transaction.
type Op struct {
	Kind       OpKind
	Collection string

	// ID addresses the target record for update and delete. For create
	// the store generates it and reports it in the resulting Change.
	ID string

	// Record is the payload for create.
	Record Record

	// Fields is the partial merge for update.
	Fields map[string]any

	// ExpectedVersion, when non-zero, makes an update conditional: if
	// the stored record's version differs the whole transaction is
	// rejected with ErrConflict.
	ExpectedVersion int64
}

// Transaction is an ordered list of mutations committed as one unit.
// Modeling the batch as a value keeps the all-or-nothing contract
// explicit and testable against an in-memory store.
type Transaction struct {
	Ops []Op
}

// NewTransaction returns an empty transaction.
func NewTransaction() *Transaction { return &Transaction{} }

// Create queues a record insert.
func (t *Transaction) Create(collection string, r Record) *Transaction {
	t.Ops = append(t.Ops, Op{Kind: OpCreate, Collection: collection, Record: r})
	return t
}

// Update queues a conditional partial merge.
func (t *Transaction) Update(collection, id string, expectedVersion int64, fields map[string]any) *Transaction {
	t.Ops = append(t.Ops, Op{
		Kind:            OpUpdate,
		Collection:      collection,
		ID:              id,
		Fields:          fields,
		ExpectedVersion: expectedVersion,
	})
	return t
}

// Delete queues a record removal.
func (t *Transaction) Delete(collection, id string) *Transaction {
	t.Ops = append(t.Ops, Op{Kind: OpDelete, Collection: collection, ID: id})
	return t
}

// Empty reports whether the transaction holds no operations.
func (t *Transaction) Empty() bool { return t == nil || len(t.Ops) == 0 }
