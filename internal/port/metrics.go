package port

type Metrics interface {
	// RecordSuccess counts a committed operation
	RecordSuccess(operation string)

	// RecordFailure counts a rejected operation by its error kind
	RecordFailure(operation string, err error)
}
