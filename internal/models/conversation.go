package models

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// NewConversationID generates an opaque conversation id from a high resolution timestamp and a random
// fraction. Ids are unlikely to collide but are not guaranteed to be globally unique.
func NewConversationID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), strconv.FormatFloat(rand.Float64(), 'f', -1, 64))
}
