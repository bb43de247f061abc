package catalog

// BookFilters narrows catalog listings.
type BookFilters struct {
	// Title matches case-insensitively anywhere in the title.
	Title string
}

// RegisterBookInput carries the fields for a new catalog entry.
type RegisterBookInput struct {
	ISBN            string
	Title           string
	Author          string
	Publisher       *string
	PublicationYear *int
	TotalCopies     int
	// AvailableCopies defaults to TotalCopies when nil.
	AvailableCopies *int
}

// UpdateBookInput edits catalog metadata. Nil fields are left unchanged.
type UpdateBookInput struct {
	Title           *string
	Author          *string
	Publisher       *string
	PublicationYear *int
	TotalCopies     *int
}
