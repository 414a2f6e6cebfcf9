//go:build tinygo

package flightlink

import (
	"sync"
)

type mutex struct {
	sync.Mutex
}
