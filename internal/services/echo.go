package services

import (
	"context"
	"fmt"
)

// Echo is the default text responder. It performs no language understanding and answers every message
// with a canned acknowledgement that quotes it back.
type Echo struct{}

// Respond returns the canned acknowledgement for message.
func (Echo) Respond(_ context.Context, message string) (string, error) {
	return fmt.Sprintf("I received your message: \"%s\". This is a text-based response. "+
		"For voice interaction, please use the voice button.", message), nil
}
