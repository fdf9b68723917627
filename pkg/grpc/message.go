package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct 將帶 json tag 的 Go 結構轉成 google.protobuf.Struct
//
// ledger 服務的請求與回應在線路上都是 Struct (見 proto/ledger.proto)，
// 欄位名稱與 json tag 相同，金額為十進位字串。
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("convert %T to struct: %w", v, err)
	}
	return s, nil
}

// FromStruct 將 google.protobuf.Struct 填入 v (指向帶 json tag 的 Go 結構)
func FromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("convert struct to %T: %w", v, err)
	}
	return nil
}
