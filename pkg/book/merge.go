package book

// Merge applies a sparse update to an existing record. Supplied fields
// overwrite, unsupplied fields keep their values, and the id always stays the
// existing one. A supplied null clears an optional field and empties a
// required one, which validation then rejects.
func Merge(existing Book, patch Patch) Book {
	merged := existing.Clone()

	if patch.Title.Set {
		merged.Title = deref(patch.Title.Value)
	}
	if patch.Author.Set {
		merged.Author = deref(patch.Author.Value)
	}
	if patch.Year.Set {
		merged.Year = cloneInt(patch.Year.Value)
	}
	if patch.Genre.Set {
		merged.Genre = cloneString(patch.Genre.Value)
	}
	if patch.ISBN.Set {
		merged.ISBN = cloneString(patch.ISBN.Value)
	}

	merged.ID = existing.ID
	return merged
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
