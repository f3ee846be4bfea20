package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const jsonrpcVersion = "2.0"

// DefaultMaxFrameBytes bounds a single inbound line.
const DefaultMaxFrameBytes = 4 << 20

// request is an outbound call or notification. Notifications carry no id.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is any inbound frame. A frame with a method and no id is a notification.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
}

func (r *response) notification() bool {
	return r.ID == nil && r.Method != ""
}

// validReply reports whether a reply carries exactly one of result or error.
// An explicit "result": null counts as a result.
func (r *response) validReply() bool {
	return (len(r.Result) > 0) != (r.Error != nil)
}

var errFrameTooLarge = errors.New("frame exceeds size limit")

// encodeFrame renders v as one newline-terminated JSON line.
func encodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return append(data, '\n'), nil
}

// readFrame reads one newline-terminated line of at most limit bytes.
//
// Postcondition: io.ErrUnexpectedEOF is returned when the stream ends mid-line and io.EOF
// when it ends on a frame boundary.
func readFrame(r *bufio.Reader, limit int) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := r.ReadSlice('\n')
		if buf.Len()+len(chunk) > limit+1 {
			return nil, errFrameTooLarge
		}
		buf.Write(chunk)
		switch {
		case err == nil:
			return bytes.TrimRight(buf.Bytes(), "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if buf.Len() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}

// decodeFrame parses one inbound line. The jsonrpc member may be omitted; when present it
// must be "2.0".
func decodeFrame(line []byte) (*response, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if resp.JSONRPC != "" && resp.JSONRPC != jsonrpcVersion {
		return nil, fmt.Errorf("unexpected jsonrpc version %q", resp.JSONRPC)
	}
	return &resp, nil
}
