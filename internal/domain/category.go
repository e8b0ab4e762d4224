package domain

// Category is one node of the job-category taxonomy. ParentID nil means
// root. JobCount is the rollup of open jobs under the node (own jobs plus
// all descendants); it is maintained incrementally by the taxonomy package.
type Category struct {
	ID        int64
	Name      string
	Slug      string
	ParentID  *int64
	SortOrder int
	IsActive  bool
	JobCount  int64
}
