package chat

import (
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// relay drains the model stream, forwarding each content chunk to w as it
// arrives while accumulating the full text. It returns the accumulated text
// in both outcomes: on success err is nil, on a mid-stream failure the text
// is the partial prefix produced before the error. A write failure (client
// disconnect) is treated the same as a stream failure.
func relay(sr *schema.StreamReader[*schema.Message], w io.Writer) (string, error) {
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return buf.String(), nil
		}
		if err != nil {
			return buf.String(), err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		if _, err := io.WriteString(w, msg.Content); err != nil {
			return buf.String(), err
		}
		buf.WriteString(msg.Content)
	}
}
