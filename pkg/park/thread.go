package park

import (
	"strconv"

	"github.com/petermattis/goid"
)

// Thread identifies a goroutine.
type Thread int64

// NoThread is the identity of no goroutine.
const NoThread Thread = 0

// Current returns the identity of the calling goroutine.
func Current() Thread {
	return Thread(goid.Get())
}

func (t Thread) String() string {
	if t == NoThread {
		return "none"
	}

	return "goroutine-" + strconv.FormatInt(int64(t), 10)
}
