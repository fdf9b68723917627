package grpc

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type sampleView struct {
	ID        int64           `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type sampleMessage struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Owner   int64        `json:"owner"`
	Items   []sampleView `json:"items"`
	Open    *sampleView  `json:"open,omitempty"`
}

func TestStructRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := sampleMessage{
		Success: true,
		Code:    "OK",
		Owner:   1234567890,
		Items: []sampleView{
			{ID: 42, Amount: decimal.RequireFromString("1500.50"), CreatedAt: created},
		},
	}

	s, err := ToStruct(in)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Fields["items"].GetListValue().GetValues()[0].GetStructValue().Fields["amount"].GetStringValue(); got != "1500.5" {
		t.Errorf("amount on the wire = %q, want a decimal string", got)
	}

	var out sampleMessage
	if err := FromStruct(s, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Code != "OK" || out.Owner != 1234567890 || out.Open != nil {
		t.Errorf("round trip = %+v", out)
	}
	if len(out.Items) != 1 || out.Items[0].ID != 42 || !out.Items[0].Amount.Equal(in.Items[0].Amount) || !out.Items[0].CreatedAt.Equal(created) {
		t.Errorf("items = %+v", out.Items)
	}
}

func TestFromStructRejectsWrongType(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"owner": "not a number"})
	if err != nil {
		t.Fatal(err)
	}
	var out sampleMessage
	if err := FromStruct(s, &out); err == nil {
		t.Fatal("expected error for a string in an int64 field")
	}
}

func TestStructOverDefaultProtoCodec(t *testing.T) {
	codec := encoding.GetCodec("proto")
	if codec == nil {
		t.Fatal("proto codec not registered")
	}
	s, err := ToStruct(sampleMessage{Code: "OK", Owner: 7})
	if err != nil {
		t.Fatal(err)
	}
	data, err := codec.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	back := new(structpb.Struct)
	if err := codec.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(s, back) {
		t.Errorf("proto round trip = %v, want %v", back, s)
	}
}
