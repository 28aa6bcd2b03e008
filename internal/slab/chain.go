package slab

// DefaultMaxSize caps the capacity growth of chained arenas.
const DefaultMaxSize = 64 << 10

// Chain is an oldest-to-newest list of arenas owned by one producer.
//
// Chain is not safe for concurrent mutation. Insert must be serialized by
// the caller; Find may run concurrently with other Finds.
type Chain struct {
	head *Arena
	tail *Arena
	size int
	max  int
}

// NewChain creates an empty chain whose first arena holds size bytes.
// Successor arenas double in capacity up to max.
func NewChain(size, max int) *Chain {
	if size < HeaderSize {
		size = HeaderSize
	}
	if max < size {
		max = size
	}
	return &Chain{size: size, max: max}
}

// Head returns the oldest arena, or nil if nothing was inserted yet.
func (c *Chain) Head() *Arena {
	return c.head
}

// Insert appends a record to the newest arena, linking a fresh arena when
// the current one is full. Returns the arena holding the record and its offset.
func (c *Chain) Insert(id uint32, tag uint64, data []byte) (*Arena, int) {
	if c.tail == nil {
		c.head = New(c.sizeFor(len(data)))
		c.tail = c.head
	}
	if off, ok := c.tail.Insert(id, tag, data); ok {
		return c.tail, off
	}

	c.size = min(c.size*2, c.max)
	c.tail = c.tail.Link(New(c.sizeFor(len(data))))

	off, ok := c.tail.Insert(id, tag, data)
	if !ok {
		// sizeFor guarantees room in a fresh arena; a linked arena we did not
		// create might still be too small, so grow once more.
		c.tail = c.tail.Link(New(Footprint(len(data))))
		off, ok = c.tail.Insert(id, tag, data)
		if !ok {
			panic("slab: fresh arena cannot hold record")
		}
	}
	return c.tail, off
}

// Find scans every arena from oldest to newest.
func (c *Chain) Find(tag uint64, data []byte) (id uint32, ok bool) {
	for a := c.head; a != nil; a = a.Next() {
		if id, _, ok := a.Find(tag, data); ok {
			return id, true
		}
	}
	return 0, false
}

// Bytes returns the total capacity reserved by the chain.
func (c *Chain) Bytes() int {
	total := 0
	for a := c.head; a != nil; a = a.Next() {
		total += a.Cap()
	}
	return total
}

func (c *Chain) sizeFor(n int) int {
	return max(c.size, Footprint(n))
}
