package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName 是 JSON codec 的 content-subtype (application/grpc+json)
//
// 預設仍使用 gRPC 內建的 proto codec；JSON 只在呼叫端指定 CallContentSubtype 時使用，
// 方便以 curl 或瀏覽器工具除錯。
const CodecName = "json"

// jsonCodec 以 JSON 編碼 gRPC 訊息，protobuf 訊息走 protojson
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
