package openai

import (
	"bufio"
	"bytes"
	"io"
)

// maxEventSize bounds a single SSE event.
const maxEventSize = 1 << 20

// sseReader parses Server-Sent Events from a stream.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the data of the next event, joining multi-line data with
// newlines. Comment, id and retry lines are skipped. io.EOF marks the end of
// the stream.
func (s *sseReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		atEOF := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")
		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimPrefix(line[5:], []byte(" "))
			size += len(data)
			if size > maxEventSize {
				return nil, errEventTooLarge
			}
			dataLines = append(dataLines, data)
		}

		if len(line) == 0 || atEOF {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			if atEOF {
				return nil, io.EOF
			}
		}
	}
}
