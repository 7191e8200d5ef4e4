package ir

// ExprMap is a map keyed by structural identity: two structurally equal
// expressions address the same entry.
type ExprMap[V any] struct {
	buckets map[uint64][]exprEntry[V]
	n       int
}

type exprEntry[V any] struct {
	key *Expr
	val V
}

// NewExprMap returns an empty map.
func NewExprMap[V any]() *ExprMap[V] {
	return &ExprMap[V]{buckets: make(map[uint64][]exprEntry[V])}
}

// Get returns the value stored for a structurally equal key.
func (m *ExprMap[V]) Get(e *Expr) (V, bool) {
	for _, ent := range m.buckets[e.Hash()] {
		if Equal(ent.key, e) {
			return ent.val, true
		}
	}
	var zero V
	return zero, false
}

// Set stores v for e, replacing any structurally equal key.
func (m *ExprMap[V]) Set(e *Expr, v V) {
	if m.buckets == nil {
		m.buckets = make(map[uint64][]exprEntry[V])
	}
	h := e.Hash()
	bucket := m.buckets[h]
	for i := range bucket {
		if Equal(bucket[i].key, e) {
			bucket[i].val = v
			return
		}
	}
	m.buckets[h] = append(bucket, exprEntry[V]{key: e, val: v})
	m.n++
}

// Len returns the number of distinct keys.
func (m *ExprMap[V]) Len() int { return m.n }
