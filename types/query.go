package types

// QueryPath is a structured key for read-only engine queries
// (e.g., "/balance", "/allowance", "/settled", "/info").
type QueryPath string

// Known query paths.
const (
	QueryBalance   QueryPath = "/balance"
	QueryAllowance QueryPath = "/allowance"
	QuerySettled   QueryPath = "/settled"
	QueryInfo      QueryPath = "/info"
)

// StateQuery is a request to read engine state. Data is the
// cramberry-encoded argument struct for the path.
type StateQuery struct {
	Path QueryPath `cramberry:"1"`
	Data []byte    `cramberry:"2"`
}

// StateQueryResult is the engine's response to a state query.
type StateQueryResult struct {
	Code  uint32 `cramberry:"1"`
	Value []byte `cramberry:"2"`
	Info  string `cramberry:"3"`
}

// OK returns true if the query succeeded.
func (r StateQueryResult) OK() bool { return r.Code == 0 }

// BalanceQuery asks for Owner's holding of Asset. The result value is
// the 32-byte amount word.
type BalanceQuery struct {
	Owner Address `cramberry:"1"`
	Asset Asset   `cramberry:"2"`
}

// AllowanceQuery asks what Spender may pull from Owner. The result
// value is the 32-byte amount word; the all-ones word is unlimited.
type AllowanceQuery struct {
	Owner   Address `cramberry:"1"`
	Asset   Asset   `cramberry:"2"`
	Spender Address `cramberry:"3"`
}

// SettledQuery asks whether Op's settlement sentinel is set for Host.
// The result value is a single byte, 1 when set.
type SettledQuery struct {
	Host Address     `cramberry:"1"`
	Op   OperationID `cramberry:"2"`
}
