// Package grpcapi serves backtests over gRPC: a unary Run and a
// server-streaming RunBatch that sends each result as soon as it finishes.
//
// Messages are google.protobuf.Struct values so no generated code is
// needed. Requests carry the JSON form of RunRequest; replies use the fixed
// layout written by encodeReply.
package grpcapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"quantbts/internal/backtest"
	"quantbts/internal/stats"
)

// RunRequest is one backtest job with an optional benchmark symbol.
type RunRequest struct {
	backtest.Job
	Benchmark string `json:"benchmark,omitempty"`
}

// BatchRequest groups independent jobs for RunBatch.
type BatchRequest struct {
	Jobs []RunRequest `json:"jobs"`
}

// Reply is the outcome of one job. In a batch, Index is the job's position
// in the request and a failed job carries Error instead of a report.
type Reply struct {
	Index    int
	Strategy string
	Symbol   string
	Start    int
	End      int
	Bars     int
	Trades   int
	Report   stats.Report
	Error    string
}

// toStruct converts a JSON-encodable value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a Struct into a JSON-decodable value.
func fromStruct(st *structpb.Struct, v any) error {
	data, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	return nil
}

// encodeReply lays the report out as a list so metric order survives the
// unordered Struct map. Undefined values become null.
func encodeReply(r Reply) (*structpb.Struct, error) {
	metrics := make([]any, len(r.Report))
	for i, m := range r.Report {
		var v any
		if stats.Defined(m.Value) {
			v = m.Value
		}
		metrics[i] = map[string]any{"name": m.Name, "value": v}
	}
	return structpb.NewStruct(map[string]any{
		"index":    r.Index,
		"strategy": r.Strategy,
		"symbol":   r.Symbol,
		"start":    r.Start,
		"end":      r.End,
		"bars":     r.Bars,
		"trades":   r.Trades,
		"report":   metrics,
		"error":    r.Error,
	})
}

func decodeReply(st *structpb.Struct) Reply {
	f := st.GetFields()
	num := func(name string) int { return int(f[name].GetNumberValue()) }

	r := Reply{
		Index:    num("index"),
		Strategy: f["strategy"].GetStringValue(),
		Symbol:   f["symbol"].GetStringValue(),
		Start:    num("start"),
		End:      num("end"),
		Bars:     num("bars"),
		Trades:   num("trades"),
		Error:    f["error"].GetStringValue(),
	}
	for _, v := range f["report"].GetListValue().GetValues() {
		m := v.GetStructValue().GetFields()
		value := stats.Undefined
		if _, isNum := m["value"].GetKind().(*structpb.Value_NumberValue); isNum {
			value = m["value"].GetNumberValue()
		}
		r.Report = append(r.Report, stats.Metric{Name: m["name"].GetStringValue(), Value: value})
	}
	return r
}
