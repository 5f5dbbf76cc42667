package domain

// Operation enumerates the four query kinds a structured contract may carry.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether the operation is one of the four allowed kinds.
func (o Operation) Valid() bool {
	switch o {
	case OpSelect, OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Mutating reports whether the operation changes existing rows and therefore
// requires at least one filter.
func (o Operation) Mutating() bool {
	return o == OpUpdate || o == OpDelete
}

// Filter operator names accepted in a QueryContract.
const (
	FilterEq       = "eq"
	FilterNeq      = "neq"
	FilterGt       = "gt"
	FilterGte      = "gte"
	FilterLt       = "lt"
	FilterLte      = "lte"
	FilterLike     = "like"
	FilterILike    = "ilike"
	FilterIn       = "in"
	FilterIs       = "is"
	FilterContains = "contains"
	FilterOverlaps = "overlaps"
)

// Filter is one predicate in a contract's WHERE clause. Predicates are
// combined with AND.
type Filter struct {
	Column string      `json:"column"`
	Op     string      `json:"op"`
	Value  interface{} `json:"value"`
}

// Sort is one ordering term.
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// QueryContract is the structured, non-SQL description of a database
// operation submitted by a client SDK. Every field is untrusted until the
// validator has resolved it against live metadata.
type QueryContract struct {
	Operation Operation              `json:"operation"`
	Table     string                 `json:"table"`
	Columns   []string               `json:"columns,omitempty"`
	Filters   []Filter               `json:"filters,omitempty"`
	Sort      []Sort                 `json:"sort,omitempty"`
	Limit     int                    `json:"limit,omitempty"`
	Returning []string               `json:"returning,omitempty"`
	Values    map[string]interface{} `json:"values,omitempty"`
}

// ResolvedContract is the validator's output: the contract with concrete,
// permission-checked column lists and the tenant schema bound in. It is the
// only input the SQL generator accepts.
type ResolvedContract struct {
	Operation Operation
	Schema    string
	Table     string
	Columns   []string
	Filters   []Filter
	Sort      []Sort
	Limit     int
	Returning []string
	Values    map[string]interface{}
}
