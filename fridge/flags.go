package fridge

import "fmt"

// Retrieval mode carried by the flags word of every operation
type Flag int

const (
	NonBlock Flag = iota // Fail fast when the key has no entry
	Block                // Wait for a put on the key
)

// Validate a raw flags word. Only NonBlock and Block are legal, for every
// operation, even those that ignore the mode.
func ParseFlag(flags int) (Flag, error) {
	switch Flag(flags) {
	case NonBlock, Block:
		return Flag(flags), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidFlag, flags)
	}
}

func (f Flag) String() string {
	switch f {
	case NonBlock:
		return "nonblock"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("flag(%d)", int(f))
	}
}
