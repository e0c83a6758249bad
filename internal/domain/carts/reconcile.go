package carts

// The functions below are the single implementation of cart semantics. They
// never modify their input; each returns a fresh snapshot.

func indexOf(lines []Line, key LineKey) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

// addLine increments the quantity of the line matching in.Key() or appends in.
// An existing line keeps the price captured when it was first added.
func addLine(s Snapshot, in Line) Snapshot {
	next := s.Clone()
	if i := indexOf(next.Lines, in.Key()); i >= 0 {
		next.Lines[i].Quantity = capQuantity(next.Lines[i].Quantity + in.Quantity)
		return next
	}
	in.Quantity = capQuantity(in.Quantity)
	next.Lines = append(next.Lines, in)
	return next
}

func capQuantity(n int) int {
	return min(n, MaxLineQuantity)
}

// setQuantity sets an absolute quantity; n <= 0 removes the line.
func setQuantity(s Snapshot, key LineKey, n int) (Snapshot, bool) {
	i := indexOf(s.Lines, key)
	if i < 0 {
		return s, false
	}
	if n <= 0 {
		return removeLines(s, key, false), true
	}
	next := s.Clone()
	next.Lines[i].Quantity = n
	return next, true
}

// removeLines drops the line matching key, or every line of key.ProductKey
// when allVariants is set.
func removeLines(s Snapshot, key LineKey, allVariants bool) Snapshot {
	next := s.Clone()
	next.Lines = next.Lines[:0]
	for _, l := range s.Lines {
		if allVariants && l.ProductKey == key.ProductKey {
			continue
		}
		if !allVariants && l.Key() == key {
			continue
		}
		next.Lines = append(next.Lines, l)
	}
	return next
}

// changeVariant re-keys a line. Empty fields in v keep the current value. If
// the new key already exists the two lines are folded into the existing one,
// so a cart never holds two lines with the same key.
func changeVariant(s Snapshot, key LineKey, v Variant) (Snapshot, Line, bool) {
	i := indexOf(s.Lines, key)
	if i < 0 {
		return s, Line{}, false
	}

	moved := s.Lines[i]
	if v.Color != "" {
		moved.Variant.Color = v.Color
	}
	if v.Size != "" {
		moved.Variant.Size = v.Size
	}
	if moved.Key() == key {
		return s, moved, true
	}

	next := removeLines(s, key, false)
	if j := indexOf(next.Lines, moved.Key()); j >= 0 {
		next.Lines[j].Quantity = capQuantity(next.Lines[j].Quantity + moved.Quantity)
		return next, next.Lines[j], true
	}
	next.Lines = append(next.Lines, moved)
	return next, moved, true
}

func clearLines(s Snapshot) Snapshot {
	next := s.Clone()
	next.Lines = []Line{}
	return next
}

func hasWish(s Snapshot, p ProductKey) bool {
	for _, w := range s.Wishlist {
		if w == p {
			return true
		}
	}
	return false
}

func addWish(s Snapshot, p ProductKey) Snapshot {
	if hasWish(s, p) {
		return s
	}
	next := s.Clone()
	next.Wishlist = append(next.Wishlist, p)
	return next
}

func removeWish(s Snapshot, p ProductKey) Snapshot {
	next := s.Clone()
	next.Wishlist = next.Wishlist[:0]
	for _, w := range s.Wishlist {
		if w != p {
			next.Wishlist = append(next.Wishlist, w)
		}
	}
	return next
}

// Merge folds src into dst: lines with the same key have their quantities
// summed (dst keeps its captured price), other lines are appended in src
// order, and wishlists are unioned. Merging an empty snapshot is a no-op.
func Merge(dst, src Snapshot) Snapshot {
	next := dst.Clone()
	for _, l := range src.Lines {
		next = addLine(next, l)
	}
	for _, w := range src.Wishlist {
		next = addWish(next, w)
	}
	return next
}

// normalize enforces the cart invariants on data read from storage: no
// quantity below one, no duplicate line keys, no duplicate wishlist entries.
func normalize(s Snapshot) Snapshot {
	out := Snapshot{Lines: []Line{}, Wishlist: []ProductKey{}}
	for _, l := range s.Lines {
		if l.Quantity < 1 || l.ProductKey == "" {
			continue
		}
		out = addLine(out, l)
	}
	for _, w := range s.Wishlist {
		if w == "" {
			continue
		}
		out = addWish(out, w)
	}
	return out
}
