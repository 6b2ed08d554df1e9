package results

// Find returns the row to move to from the current position.
//
// When current is a valid row of idx the result steps one row in dir,
// wrapping around at both ends. Otherwise there is no active selection and the
// search starts from currentPage: Next picks the first match on or after that
// page, Previous the last match on or before it, each wrapping around when no
// such match exists.
//
// ok is false only when idx holds no matches.
func Find(idx *Index, current, currentPage int, dir Direction) (row int, ok bool) {
	rows := idx.Len()
	if rows == 0 {
		return -1, false
	}

	if current >= 0 && current < rows {
		return step(current, rows, dir), true
	}

	switch dir {
	case Previous:
		return (idx.UpperBound(currentPage) + rows - 1) % rows, true
	default:
		return idx.LowerBound(currentPage) % rows, true
	}
}

func step(current, rows int, dir Direction) int {
	if dir == Previous {
		return (current + rows - 1) % rows
	}
	return (current + 1) % rows
}
