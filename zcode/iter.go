package zcode

// Iter iterates over a sequence of tagged bodies.
type Iter Bytes

func (i *Iter) Done() bool {
	return len(*i) == 0
}

// Next returns the next body.  It returns an empty slice for a zero-length
// body and nil for an unset one.
func (i *Iter) Next() (Bytes, error) {
	tag, rest, err := ReadUvarint(Bytes(*i))
	if err != nil {
		return nil, err
	}
	if tag == 0 {
		*i = Iter(rest)
		return nil, nil
	}
	n := tag - 1
	if n > uint64(len(rest)) {
		return nil, ErrShortBuffer
	}
	*i = Iter(rest[n:])
	return rest[:n:n], nil
}

// Rest returns the bytes not yet consumed.
func (i *Iter) Rest() Bytes {
	return Bytes(*i)
}
