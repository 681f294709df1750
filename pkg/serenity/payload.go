package serenity

import (
	"encoding/json"
)

// DecodeStart parses the data of a "start" frame.
func DecodeStart(data string) (StartPayload, error) {
	var p StartPayload
	return p, decodeFrame("start", data, &p)
}

// DecodeContent parses the data of a "content" frame.
func DecodeContent(data string) (ContentPayload, error) {
	var p ContentPayload
	return p, decodeFrame("content", data, &p)
}

// DecodeStop parses the data of a "stop" frame.
func DecodeStop(data string) (StopPayload, error) {
	var p StopPayload
	return p, decodeFrame("stop", data, &p)
}

// DecodeError parses the data of an "error" frame.
func DecodeError(data string) (ErrorPayload, error) {
	var p ErrorPayload
	return p, decodeFrame("error", data, &p)
}

func decodeFrame(event, data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return &ProtocolError{Event: event, Data: data, Err: err}
	}
	return nil
}
