package schema

// Operation describes the kind of accepted write applied to a category.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	// OperationDelete resets a category to schema defaults; the underlying
	// row is never physically removed.
	OperationDelete Operation = "delete"
)

func (o Operation) String() string {
	return string(o)
}
