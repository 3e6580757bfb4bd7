package core

// DBOrdering is a single `ORDER BY` term, as parsed from an `?ordering=-field` query param.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
