package irio

// SchemaVersion is bumped whenever the wire layout changes. Decoding a
// file written with another version fails.
const SchemaVersion uint16 = 1

// none marks an absent statement child.
const none int32 = -1

// wireFile is the on-disk layout. Nodes are stored in flat tables in
// post-order; a child always refers to an earlier entry of its table, so
// a node reachable along several paths is written once.
type wireFile struct {
	Schema  uint16         `msgpack:"schema"`
	Name    string         `msgpack:"name,omitempty"`
	Buffers map[string]int `msgpack:"buffers,omitempty"`
	Exprs   []wireExpr     `msgpack:"exprs"`
	Stmts   []wireStmt     `msgpack:"stmts"`
	Root    int32          `msgpack:"root"`
}

type wireType struct {
	Kind  uint8  `msgpack:"k"`
	Bits  uint8  `msgpack:"b"`
	Lanes uint16 `msgpack:"l"`
}

type wireExpr struct {
	Kind  uint8    `msgpack:"k"`
	Type  wireType `msgpack:"t"`
	Int   int64    `msgpack:"i,omitempty"`
	Float float64  `msgpack:"f,omitempty"`
	Name  string   `msgpack:"n,omitempty"`
	Flag  bool     `msgpack:"p,omitempty"`
	Lanes int32    `msgpack:"w,omitempty"`
	Args  []int32  `msgpack:"a,omitempty"`
}

type wireStmt struct {
	Kind   uint8    `msgpack:"k"`
	Name   string   `msgpack:"n,omitempty"`
	Loop   uint8    `msgpack:"o,omitempty"`
	Type   wireType `msgpack:"t"`
	Shared bool     `msgpack:"s,omitempty"`
	Exprs  []int32  `msgpack:"e,omitempty"`
	Stmts  []int32  `msgpack:"c,omitempty"`
}
